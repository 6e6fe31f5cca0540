package dlms

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Notification is a decoded data-notification APDU.
type Notification struct {
	InvokeID uint32
	// Time is the meter clock when the notification was sent, if given
	Time *time.Time
	Body *Node
	// Truncated is set when the body ended before all elements were read
	Truncated bool
	Entries   []Entry
}

type Decoder struct {
	// Codec decodes the notification body, A-XDR if nil
	Codec Codec
	// Known filters OBIS codes, every code is accepted if nil
	Known func(code string) bool
}

// Decode returns the OBIS code/value pairs of a plaintext APDU.
func (d *Decoder) Decode(apdu []byte) ([]Entry, error) {
	n, err := d.DecodeNotification(apdu)
	if err != nil {
		return nil, err
	}
	return n.Entries, nil
}

func (d *Decoder) DecodeNotification(apdu []byte) (*Notification, error) {
	if len(apdu) < 2 || apdu[0] != dataNotification || apdu[1] != invokePriority {
		return nil, fmt.Errorf("%w: % X", ErrInvalidApduTag, apdu[:min(len(apdu), 2)])
	}

	buf := NewBuffer(apdu)
	n := &Notification{}

	var tag, dtLength uint8
	if err := buf.ReadRaw(&tag, &n.InvokeID, &dtLength); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrApduDecode, err)
	}

	switch dtLength {
	case 0:
		// No date-time
	case dateTimeLength:
		dt := make([]byte, dateTimeLength)
		if err := buf.ReadRaw(dt); err != nil {
			return nil, fmt.Errorf("%w: date-time: %v", ErrApduDecode, err)
		}
		if ts, err := parseTimestamp(dt); err == nil {
			n.Time = &ts
		}
	default:
		return nil, fmt.Errorf("%w: date-time length %d", ErrApduDecode, dtLength)
	}

	codec := d.Codec
	if codec == nil {
		codec = AXDR{}
	}
	body, err := codec.Unmarshal(*buf)
	if err != nil && (body == nil || !errors.Is(err, io.ErrUnexpectedEOF)) {
		return nil, fmt.Errorf("%w: %v", ErrApduDecode, err)
	}
	n.Body = body
	n.Truncated = err != nil
	n.Entries = d.entries(body)

	return n, nil
}

func (d *Decoder) entries(root *Node) []Entry {
	nodes := root.Flatten()
	out := []Entry{}
	for i := range nodes {
		if e, ok := d.entryAt(nodes, i); ok {
			out = append(out, e)
		}
	}
	return out
}

// entryAt reads the entry at nodes[i] if it is a known OBIS code followed by a
// node holding its value.
func (d *Decoder) entryAt(nodes []*Node, i int) (Entry, bool) {
	n := nodes[i]
	if n.Type != TypeOctetString || len(n.Value) != 6 {
		return Entry{}, false
	}
	code := strings.ToUpper(hex.EncodeToString(n.Value))
	if d.Known != nil && !d.Known(code) {
		return Entry{}, false
	}
	if i+1 >= len(nodes) {
		return Entry{}, false
	}
	v, ok := nodes[i+1].Int()
	if !ok {
		return Entry{}, false
	}
	return Entry{Code: code, Value: v}, true
}

func parseTimestamp(data []byte) (time.Time, error) {
	if len(data) < 8 {
		return time.Time{}, fmt.Errorf("too few bytes (timestamp)")
	}
	year := binary.BigEndian.Uint16(data[0:2])
	if year == 0xffff || data[2] == 0xff || data[3] == 0xff {
		return time.Time{}, fmt.Errorf("date not specified")
	}
	ts := time.Date(
		int(year),           // year
		time.Month(data[2]), // month
		int(data[3]),        // day
		int(data[5]),        // hour
		int(data[6]),        // minute
		int(data[7]),        // second
		0,                   // nsec
		time.Local,
	)
	return ts, nil
}
