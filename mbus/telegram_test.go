package mbus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemtjan.st/mbusmeter/internal/testutil"
)

func TestParse(t *testing.T) {
	tel := testutil.LoadHex(t, "sim_telegram.hex")

	h, err := Parse(tel)
	require.NoError(t, err)
	assert.Equal(t, "68FAFA68", h.Start)
	assert.Equal(t, 0xFA, h.FrameLength)
	assert.Equal(t, "4B464D6750000009", h.SystemTitle)
	assert.Equal(t, "00000023", h.FrameCounter)
	assert.Len(t, h.Ciphertext, 456)
	assert.True(t, strings.HasPrefix(h.Ciphertext, "88D5AB4F"))
	assert.True(t, strings.HasSuffix(h.Ciphertext, "16CC5787E6F5"))
}

func TestParseShort(t *testing.T) {
	tel := testutil.LoadHex(t, "sim_telegram.hex")
	for _, n := range []int{0, 1, 8, 51} {
		_, err := Parse(tel[:n])
		assert.ErrorIs(t, err, ErrMalformedTelegram, "length %d", n)
	}
}

func TestParseClampsCiphertext(t *testing.T) {
	tel := testutil.LoadHex(t, "sim_telegram.hex")

	h, err := Parse(tel[:100])
	require.NoError(t, err)
	assert.Equal(t, tel[52:100], h.Ciphertext)
}

func TestParseBadLength(t *testing.T) {
	tel := testutil.LoadHex(t, "sim_telegram.hex")
	_, err := Parse("68ZZ" + tel[4:])
	assert.ErrorIs(t, err, ErrMalformedTelegram)
}

func TestChecksum(t *testing.T) {
	for _, name := range []string{"sim_telegram.hex", "evn_telegram.hex"} {
		tel := testutil.LoadHex(t, name)
		_, ok, err := Checksum(tel)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}

	sum, ok, err := Checksum(testutil.LoadHex(t, "sim_telegram.hex")[:508] + "0016")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, byte(0x17), sum)
}
