package publish

import (
	"errors"

	"hemtjan.st/mbusmeter/meter"
)

// Multi publishes to every publisher in turn.
type Multi []meter.Publisher

func (m Multi) Publish(r meter.Reading) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
