package dlms

import (
	"encoding/binary"
	"io"
)

type Buffer []byte

func NewBuffer(data []byte) *Buffer {
	buf := Buffer(data)
	return &buf
}

var (
	order = binary.BigEndian
)

func (b *Buffer) ReadRaw(tv ...interface{}) error {
	for _, t := range tv {
		switch t := t.(type) {
		case *uint8:
			if len(*b) < 1 {
				return io.ErrUnexpectedEOF
			}
			*t = (*b)[0]
			*b = (*b)[1:]
		case *uint16:
			if len(*b) < 2 {
				return io.ErrUnexpectedEOF
			}
			*t = order.Uint16((*b)[0:2])
			*b = (*b)[2:]
		case *uint32:
			if len(*b) < 4 {
				return io.ErrUnexpectedEOF
			}
			*t = order.Uint32((*b)[0:4])
			*b = (*b)[4:]
		case []byte:
			if len(*b) < len(t) {
				return io.ErrUnexpectedEOF
			}
			copy(t, *b)
			*b = (*b)[len(t):]
		default:
			return ErrUnsupportedType
		}
	}
	return nil
}

// Next returns a copy of the next n bytes.
func (b *Buffer) Next(n int) ([]byte, error) {
	if n < 0 || len(*b) < n {
		return nil, io.ErrUnexpectedEOF
	}
	dat := make([]byte, n)
	copy(dat, *b)
	*b = (*b)[n:]
	return dat, nil
}

// ReadLength reads an A-XDR length: one byte below 0x80, otherwise 0x80|n
// followed by n big-endian length bytes.
func (b *Buffer) ReadLength() (int, error) {
	var first uint8
	if err := b.ReadRaw(&first); err != nil {
		return 0, err
	}
	if first&0x80 == 0 {
		return int(first), nil
	}
	n := int(first & 0x7f)
	if n == 0 || n > 4 {
		return 0, ErrUnsupportedType
	}
	dat, err := b.Next(n)
	if err != nil {
		return 0, err
	}
	ln := 0
	for _, v := range dat {
		ln = ln<<8 | int(v)
	}
	return ln, nil
}
