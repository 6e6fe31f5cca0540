package obis

import (
	"hemtjan.st/mbusmeter/dlms"
)

// Record maps measurement keys to values.
type Record map[string]float64

// Mapper turns decoded entries into a Record using a descriptor table.
type Mapper struct {
	direct  map[string]Descriptor
	derived []Descriptor
}

// NewMapper returns a Mapper for the given table, Table if nil.
func NewMapper(table []Descriptor) *Mapper {
	if table == nil {
		table = Table
	}
	m := &Mapper{direct: map[string]Descriptor{}}
	for _, d := range table {
		if d.Transform.Derived() {
			m.derived = append(m.derived, d)
			continue
		}
		m.direct[d.Code] = d
	}
	return m
}

// Known reports whether the mapper has a descriptor for code.
func (m *Mapper) Known(code string) bool {
	_, ok := m.direct[code]
	return ok
}

func (m *Mapper) Map(entries []dlms.Entry) Record {
	r := Record{}
	for _, e := range entries {
		d, ok := m.direct[e.Code]
		if !ok {
			continue
		}
		r[d.Key] = d.Transform.Apply(e.Value)
	}
	for _, d := range m.derived {
		if v, ok := d.Transform.Derive(r); ok {
			r[d.Key] = v
		}
	}
	return r
}
