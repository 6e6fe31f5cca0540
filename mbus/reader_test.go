package mbus

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	tel := testTelegram('F')
	// OneByteReader would never present the marker at a chunk start
	r := NewReader(iotest.HalfReader(strings.NewReader(tel)))

	got, err := r.ReadTelegram()
	require.NoError(t, err)
	assert.Equal(t, tel, got)

	_, err = r.ReadTelegram()
	assert.Equal(t, io.EOF, err)
}

func TestReaderPartialAtEOF(t *testing.T) {
	tel := testTelegram('G')
	r := NewReader(strings.NewReader(tel[:400]))

	got, err := r.ReadTelegram()
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, got)
}
