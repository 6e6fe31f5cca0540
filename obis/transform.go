package obis

import "fmt"

type Kind uint8

const (
	KindIdentity Kind = iota
	KindLinear
	KindPercentage
	KindDifference
)

// Transform converts a raw register value into a measurement. Direct
// transforms read the raw integer, Difference reads two already mapped keys.
type Transform struct {
	Kind  Kind
	Scale float64
	// Minuend and Subtrahend are record keys, only set for Difference
	Minuend    string
	Subtrahend string
}

func Identity() Transform {
	return Transform{Kind: KindIdentity}
}

func Linear(scale float64) Transform {
	return Transform{Kind: KindLinear, Scale: scale}
}

// Percentage scales the raw value and expresses the ratio in percent.
func Percentage(scale float64) Transform {
	return Transform{Kind: KindPercentage, Scale: scale}
}

func Difference(minuend, subtrahend string) Transform {
	return Transform{Kind: KindDifference, Minuend: minuend, Subtrahend: subtrahend}
}

// Derived reports whether the transform is computed from other measurements.
func (t Transform) Derived() bool {
	return t.Kind == KindDifference
}

// Apply converts a raw register value. It panics for derived transforms.
func (t Transform) Apply(raw int64) float64 {
	switch t.Kind {
	case KindIdentity:
		return float64(raw)
	case KindLinear:
		return float64(raw) * t.Scale
	case KindPercentage:
		return float64(raw) * t.Scale * 100
	}
	panic(fmt.Sprintf("obis: Apply on %s transform", t))
}

// Derive computes a derived value from a record. The second result is false
// when one of the sources is missing.
func (t Transform) Derive(r Record) (float64, bool) {
	if t.Kind != KindDifference {
		return 0, false
	}
	a, ok := r[t.Minuend]
	if !ok {
		return 0, false
	}
	b, ok := r[t.Subtrahend]
	if !ok {
		return 0, false
	}
	return a - b, true
}

func (t Transform) String() string {
	switch t.Kind {
	case KindIdentity:
		return "identity"
	case KindLinear:
		return fmt.Sprintf("linear(%g)", t.Scale)
	case KindPercentage:
		return fmt.Sprintf("percentage(%g)", t.Scale)
	case KindDifference:
		return fmt.Sprintf("difference(%s, %s)", t.Minuend, t.Subtrahend)
	}
	return "unknown"
}
