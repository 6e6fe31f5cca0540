package dlms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemtjan.st/mbusmeter/internal/testutil"
)

var knownCodes = map[string]bool{
	"0100200700FF": true, "0100340700FF": true, "0100480700FF": true,
	"01001F0700FF": true, "0100330700FF": true, "0100470700FF": true,
	"0100010700FF": true, "0100020700FF": true,
	"0100010800FF": true, "0100020800FF": true,
	"01000D0700FF": true,
}

func TestDecodeNotification(t *testing.T) {
	apdu := decodeHex(t, testutil.LoadHex(t, "evn_apdu.hex"))
	d := &Decoder{}

	n, err := d.DecodeNotification(apdu)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x80000001), n.InvokeID)
	require.NotNil(t, n.Time)
	assert.Equal(t, time.Date(2026, 10, 18, 14, 30, 0, 0, time.Local), *n.Time)
	assert.False(t, n.Truncated)
	assert.Equal(t, TypeStructure, n.Body.Type)

	want := []Entry{
		{"0100200700FF", 2305},
		{"0100340700FF", 2312},
		{"0100480700FF", 2298},
		{"01001F0700FF", 152},
		{"0100330700FF", 87},
		{"0100470700FF", 203},
		{"0100010700FF", 1234},
		{"0100020700FF", 56},
		{"0100010800FF", 12345678},
		{"0100020800FF", 2345678},
		{"0100030800FF", 4242},
		{"0100030700FF", 17},
		{"01000D0700FF", 987},
		{"0100040800FF", 998877},
	}
	assert.Equal(t, want, n.Entries)
}

func TestDecodeKnownOnly(t *testing.T) {
	apdu := decodeHex(t, testutil.LoadHex(t, "evn_apdu.hex"))
	d := &Decoder{Known: func(code string) bool { return knownCodes[code] }}

	entries, err := d.Decode(apdu)
	require.NoError(t, err)
	assert.Len(t, entries, 11)
	for _, e := range entries {
		assert.True(t, knownCodes[e.Code], e.Code)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	// The first long frame only carries 228 bytes of the notification
	apdu := decodeHex(t, testutil.LoadHex(t, "evn_apdu.hex"))[:228]
	d := &Decoder{Known: func(code string) bool { return knownCodes[code] }}

	n, err := d.DecodeNotification(apdu)
	require.NoError(t, err)
	assert.True(t, n.Truncated)
	assert.Len(t, n.Entries, 11)
}

func TestDecodeInvalidTag(t *testing.T) {
	d := &Decoder{}
	for _, s := range []string{"", "0F", "0F00000001000200", "31E245CD448182AC", "C4800000010000"} {
		_, err := d.Decode(decodeHex(t, s))
		assert.ErrorIs(t, err, ErrInvalidApduTag, s)
	}
}

func TestDecodeMissingValueSkipsEntry(t *testing.T) {
	apdu := decodeHex(t, "0F80000001"+"00"+
		"020A"+
		"09060100010700FF"+"0200"+ // value is an empty structure
		"09060100020700FF"+"0600000038"+
		"09060100010800FF"+"00"+ // value is null-data
		"09060100020800FF"+"060023CACE"+
		"0200"+
		"090601000D0700FF") // no node after the code
	d := &Decoder{}

	n, err := d.DecodeNotification(apdu)
	require.NoError(t, err)
	assert.Nil(t, n.Time)
	assert.Equal(t, []Entry{
		{"0100020700FF", 56},
		{"0100020800FF", 2345678},
	}, n.Entries)
}

func TestDecodeErrors(t *testing.T) {
	d := &Decoder{}
	cases := map[string]string{
		"header cut":       "0F800000",
		"bad date length":  "0F80000001" + "05" + "0102030405",
		"date cut":         "0F80000001" + "0C" + "07EA0A",
		"empty body":       "0F80000001" + "00",
		"unsupported type": "0F80000001" + "00" + "0202" + "09060100010700FF" + "13",
	}
	for name, s := range cases {
		_, err := d.Decode(decodeHex(t, s))
		assert.ErrorIs(t, err, ErrApduDecode, name)
	}
}

type stubCodec struct {
	node *Node
}

func (s stubCodec) Unmarshal([]byte) (*Node, error) {
	return s.node, nil
}

func TestDecodeCustomCodec(t *testing.T) {
	body := &Node{Type: TypeStructure, Children: []*Node{
		{Type: TypeOctetString, Value: decodeHex(t, "0100010700FF")},
		{Type: TypeLong, Value: decodeHex(t, "FFF6")},
	}}
	d := &Decoder{Codec: stubCodec{body}}

	entries, err := d.Decode(decodeHex(t, "0F8000000100FF"))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"0100010700FF", -10}}, entries)
}
