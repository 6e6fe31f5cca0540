package dlms

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Node is one element of a decoded COSEM data tree.
type Node struct {
	Type DataType
	// Value holds the raw encoded content of scalar types. It is nil for
	// arrays, structures and null-data.
	Value    []byte
	Children []*Node
}

// HasValue reports whether the node carries a scalar value.
func (n *Node) HasValue() bool {
	return n.Value != nil
}

// Int returns the value as an integer, big-endian, sign extended for signed
// types. Values wider than 8 bytes and floats are not integers.
func (n *Node) Int() (int64, bool) {
	if !n.HasValue() || len(n.Value) == 0 || len(n.Value) > 8 {
		return 0, false
	}
	if n.Type == TypeFloat32 || n.Type == TypeFloat64 {
		return 0, false
	}
	var v uint64
	for _, b := range n.Value {
		v = v<<8 | uint64(b)
	}
	if n.Type.signed() {
		shift := 64 - 8*uint(len(n.Value))
		return int64(v<<shift) >> shift, true
	}
	return int64(v), true
}

// Flatten returns the tree in document order, parents before children.
func (n *Node) Flatten() []*Node {
	out := []*Node{}
	var walk func(*Node)
	walk = func(c *Node) {
		out = append(out, c)
		for _, ch := range c.Children {
			walk(ch)
		}
	}
	walk(n)
	return out
}

func (n *Node) String() string {
	var sb strings.Builder
	n.format(&sb, 0)
	return sb.String()
}

func (n *Node) format(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.Type.String())
	switch {
	case n.Type == TypeArray || n.Type == TypeStructure:
		fmt.Fprintf(sb, " Qty=%d", len(n.Children))
	case n.HasValue():
		sb.WriteString(" Value=")
		sb.WriteString(strings.ToUpper(hex.EncodeToString(n.Value)))
	}
	sb.WriteByte('\n')
	for _, c := range n.Children {
		c.format(sb, depth+1)
	}
}

// Codec decodes an encoded COSEM data element into a tree.
type Codec interface {
	Unmarshal(data []byte) (*Node, error)
}

// AXDR is the A-XDR codec used by DLMS push notifications.
type AXDR struct{}

func (AXDR) Unmarshal(data []byte) (*Node, error) {
	return Unmarshal(data)
}

// Unmarshal decodes one A-XDR data element.
//
// When the data ends in the middle of an element, the part of the tree decoded
// so far is returned together with io.ErrUnexpectedEOF.
func Unmarshal(data []byte) (*Node, error) {
	return readData(NewBuffer(data))
}

func readData(buf *Buffer) (*Node, error) {
	var typ uint8
	if err := buf.ReadRaw(&typ); err != nil {
		return nil, err
	}
	n := &Node{Type: DataType(typ)}

	switch n.Type {
	case TypeNull:
		return n, nil
	case TypeArray, TypeStructure:
		qty, err := buf.ReadLength()
		if err != nil {
			return nil, err
		}
		for i := 0; i < qty; i++ {
			c, err := readData(buf)
			if c != nil {
				n.Children = append(n.Children, c)
			}
			if err != nil {
				return n, err
			}
		}
		return n, nil
	case TypeOctetString, TypeVisibleString, TypeUTF8String:
		ln, err := buf.ReadLength()
		if err != nil {
			return nil, err
		}
		if n.Value, err = buf.Next(ln); err != nil {
			return nil, err
		}
		return n, nil
	case TypeBitString:
		bits, err := buf.ReadLength()
		if err != nil {
			return nil, err
		}
		if n.Value, err = buf.Next((bits + 7) / 8); err != nil {
			return nil, err
		}
		return n, nil
	}

	size := n.Type.fixedSize()
	if size < 0 {
		return nil, fmt.Errorf("%w: data tag 0x%02x", ErrUnsupportedType, typ)
	}
	var err error
	if n.Value, err = buf.Next(size); err != nil {
		return nil, err
	}
	return n, nil
}
