package meter

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/tarm/serial"
)

// Opener opens the byte source the bridge writes telegrams to.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// SerialOpener opens device at baud, 8N1 without flow control.
func SerialOpener(device string, baud int) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		cfg := &serial.Config{
			Name:        device,
			Baud:        baud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: time.Second,
		}
		s, err := serial.OpenPort(cfg)
		if err != nil {
			return nil, err
		}
		return idlePort{s}, nil
	}
}

// idlePort reports a read that timed out on an idle line as an empty read.
// The port returns (0, io.EOF) when ReadTimeout passes without data.
type idlePort struct {
	io.ReadCloser
}

func (p idlePort) Read(b []byte) (int, error) {
	n, err := p.ReadCloser.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// FileOpener replays a captured stream. Each line of the file is returned
// by one Read, the way the bridge delivers chunks. Run stops at the end of
// the file.
func FileOpener(path string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return &lineReader{f: f, r: bufio.NewReader(f)}, nil
	}
}

type lineReader struct {
	f       *os.File
	r       *bufio.Reader
	pending []byte
}

func (l *lineReader) Read(p []byte) (int, error) {
	for len(l.pending) == 0 {
		line, err := l.r.ReadBytes('\n')
		l.pending = bytes.TrimSpace(line)
		if err != nil && len(l.pending) == 0 {
			return 0, err
		}
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *lineReader) Close() error {
	return l.f.Close()
}
