package meter

import (
	"context"
	"errors"
	"io"
	"time"
)

type Options struct {
	// PollInterval is the wait after a read that returned no data
	PollInterval time.Duration
	// BackoffBase is the first reconnect delay, doubled up to BackoffMax
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval: 100 * time.Millisecond,
		BackoffBase:  time.Second,
		BackoffMax:   30 * time.Second,
	}
}

// Run reads chunks from the source into the pipeline until ctx is done or the
// source reports io.EOF, reopening the source when it fails. A telegram still
// being collected when the source fails or ctx is cancelled is discarded.
func Run(ctx context.Context, open Opener, p *Pipeline, opts Options) error {
	backoff := opts.BackoffBase
	failing := false

	for {
		rc, err := open(ctx)
		if err != nil {
			// Only report the first failure of an outage
			if !failing {
				p.log.Error().Err(err).Msg("Opening byte source")
				failing = true
			}
		} else {
			if failing {
				p.log.Info().Msg("Byte source reopened")
				failing = false
			}
			backoff = opts.BackoffBase

			err = p.drain(ctx, rc, opts.PollInterval)
			_ = rc.Close()
			p.Reset()

			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				p.log.Info().Msg("End of stream")
				return nil
			}
			p.log.Warn().Err(err).Msg("Reading byte source")
		}

		if !sleep(ctx, backoff) {
			p.Reset()
			return nil
		}
		backoff *= 2
		if backoff > opts.BackoffMax {
			backoff = opts.BackoffMax
		}
	}
}

// drain feeds chunks until the reader fails. The reader is closed when ctx is
// cancelled so a blocked Read returns.
func (p *Pipeline) drain(ctx context.Context, rc io.ReadCloser, poll time.Duration) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = rc.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, 1024)
	for {
		n, err := rc.Read(buf)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n > 0 {
			p.Feed(buf[:n])
		}
		if err != nil {
			return err
		}
		if n == 0 && !sleep(ctx, poll) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
