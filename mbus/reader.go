package mbus

import "io"

type Reader interface {
	ReadTelegram() (string, error)
}

type reader struct {
	r   io.Reader
	a   *Assembler
	buf []byte
}

// NewReader returns a Reader pulling chunks from r until a telegram is complete.
func NewReader(r io.Reader) Reader {
	return &reader{
		r:   r,
		a:   NewAssembler(),
		buf: make([]byte, TelegramLength),
	}
}

func (r *reader) ReadTelegram() (string, error) {
	for {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			if t, ok := r.a.Feed(r.buf[:n]); ok {
				return t, nil
			}
		}
		if err != nil {
			// A telegram cut off by EOF is never returned
			r.a.Reset()
			return "", err
		}
	}
}
