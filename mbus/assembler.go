package mbus

// Assembler turns hex text chunks, as read from the bridge, into telegrams.
//
// Collection starts on a chunk beginning with StartMarker and ends once
// TelegramLength characters have been collected. A chunk that starts with the
// marker while collecting restarts the telegram. Markers elsewhere in a chunk
// are not looked for.
type Assembler struct {
	collecting bool
	collected  int
	target     int
	buf        []byte
}

func NewAssembler() *Assembler {
	return &Assembler{
		target: TelegramLength,
		buf:    make([]byte, 0, TelegramLength),
	}
}

// Feed consumes one chunk and returns a telegram when one is complete.
func (a *Assembler) Feed(chunk []byte) (string, bool) {
	if len(chunk) >= len(StartMarker) && string(chunk[:len(StartMarker)]) == StartMarker {
		a.Reset()
		a.collecting = true
	}
	if !a.collecting {
		return "", false
	}

	a.buf = append(a.buf, chunk...)
	a.collected += len(chunk)
	if a.collected < a.target {
		return "", false
	}

	telegram := string(a.buf[:a.target])
	a.Reset()
	return telegram, true
}

// Reset drops any partially collected telegram.
func (a *Assembler) Reset() {
	a.collecting = false
	a.collected = 0
	a.buf = a.buf[:0]
}

// Collecting reports whether a telegram is partially collected.
func (a *Assembler) Collecting() bool {
	return a.collecting
}

// Buffered returns the number of characters collected for the current telegram.
func (a *Assembler) Buffered() int {
	return a.collected
}
