package meter

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hemtjan.st/mbusmeter/dlms"
	"hemtjan.st/mbusmeter/mbus"
	"hemtjan.st/mbusmeter/obis"
)

// Reading is one decoded telegram.
type Reading struct {
	// Time is the meter clock from the notification, or the time the
	// telegram was decoded when the meter sent none.
	Time time.Time `json:"time"`
	// SystemTitle identifies the meter, 16 hex digits
	SystemTitle string      `json:"system_title"`
	Values      obis.Record `json:"values"`
}

// Publisher receives every successfully decoded reading.
type Publisher interface {
	Publish(r Reading) error
}

type PublisherFunc func(r Reading) error

func (f PublisherFunc) Publish(r Reading) error {
	return f(r)
}

// Pipeline assembles, decrypts and decodes telegrams from a chunk stream.
// It is not safe for concurrent Feed calls, Latest may be called from any
// goroutine.
type Pipeline struct {
	asm     *mbus.Assembler
	key     string
	decoder *dlms.Decoder
	mapper  *obis.Mapper
	pub     Publisher
	log     zerolog.Logger
	latest  atomic.Pointer[Reading]
	now     func() time.Time
}

// NewPipeline returns a pipeline decrypting with keyHex. pub may be nil.
func NewPipeline(keyHex string, pub Publisher, log zerolog.Logger) (*Pipeline, error) {
	if _, err := mbus.ParseKey(keyHex); err != nil {
		return nil, err
	}
	mapper := obis.NewMapper(nil)
	return &Pipeline{
		asm:     mbus.NewAssembler(),
		key:     keyHex,
		decoder: &dlms.Decoder{Known: mapper.Known},
		mapper:  mapper,
		pub:     pub,
		log:     log,
		now:     time.Now,
	}, nil
}

// Feed hands one chunk to the assembler and processes the telegram it
// completes, if any. Decode failures are logged and the telegram dropped.
func (p *Pipeline) Feed(chunk []byte) {
	telegram, ok := p.asm.Feed(chunk)
	if !ok {
		return
	}
	if _, err := p.Process(telegram); err != nil {
		p.log.Warn().Err(err).Msg("Dropping telegram")
	}
}

// Process decodes a complete telegram and publishes the reading.
func (p *Pipeline) Process(telegram string) (Reading, error) {
	h, err := mbus.Parse(telegram)
	if err != nil {
		return Reading{}, err
	}
	apdu, err := mbus.Decrypt(h.Ciphertext, p.key, h.SystemTitle, h.FrameCounter)
	if err != nil {
		return Reading{}, err
	}
	n, err := p.decoder.DecodeNotification(apdu)
	if err != nil {
		return Reading{}, fmt.Errorf("frame counter %s: %w", h.FrameCounter, err)
	}

	r := Reading{
		Time:        p.now(),
		SystemTitle: h.SystemTitle,
		Values:      p.mapper.Map(n.Entries),
	}
	if n.Time != nil {
		r.Time = *n.Time
	}
	p.dump(h, n, r)

	p.latest.Store(&r)
	if p.pub != nil {
		if err := p.pub.Publish(r); err != nil {
			p.log.Error().Err(err).Msg("Publishing reading")
		}
	}
	return r, nil
}

// Reset discards a partially assembled telegram.
func (p *Pipeline) Reset() {
	if p.asm.Collecting() {
		p.log.Debug().Int("buffered", p.asm.Buffered()).Msg("Discarding partial telegram")
	}
	p.asm.Reset()
}

// Latest returns the last decoded reading.
func (p *Pipeline) Latest() (Reading, bool) {
	r := p.latest.Load()
	if r == nil {
		return Reading{}, false
	}
	return *r, true
}

func (p *Pipeline) dump(h mbus.Header, n *dlms.Notification, r Reading) {
	e := p.log.Debug()
	if !e.Enabled() {
		return
	}
	e.Discard()
	p.log.Debug().
		Int("frame_length", h.FrameLength).
		Str("system_title", h.SystemTitle).
		Str("frame_counter", h.FrameCounter).
		Int("ciphertext_bytes", len(h.Ciphertext)/2).
		Bool("truncated", n.Truncated).
		Msg("Telegram")
	for _, d := range obis.Table {
		v, ok := r.Values[d.Key]
		if !ok {
			continue
		}
		code := "derived"
		if d.Code != "" {
			code, _ = obis.FormatCode(d.Code)
		}
		p.log.Debug().Str("obis", code).Float64(d.Key, v).Str("unit", d.Unit).Send()
	}
}
