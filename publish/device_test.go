package publish

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lib.hemtjan.st/device"

	"hemtjan.st/mbusmeter/meter"
	"hemtjan.st/mbusmeter/obis"
)

var testReading = meter.Reading{
	Time:        time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC),
	SystemTitle: "4B464D6750000009",
	Values: obis.Record{
		obis.Voltage1:     230.5,
		obis.Current1:     1.52,
		obis.PowerImport:  1234,
		obis.PowerExport:  56,
		obis.PowerNet:     1178,
		obis.EnergyImport: 12345.678,
		obis.PowerFactor:  0.987,
	},
}

type fakeDevice struct {
	created []*device.Info
	updates map[string]string
	err     error
}

func (f *fakeDevice) factory(info *device.Info) (Updater, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, info)
	return func(feature, value string) error {
		f.updates[feature] = value
		return nil
	}, nil
}

func TestDevicePublish(t *testing.T) {
	f := &fakeDevice{updates: map[string]string{}}
	d := NewDevice("powerMeter/house", "House Power Meter", f.factory)

	require.NoError(t, d.Publish(testReading))
	require.Len(t, f.created, 1)

	info := f.created[0]
	assert.Equal(t, "powerMeter/house", info.Topic)
	assert.Equal(t, "House Power Meter", info.Name)
	assert.Equal(t, "Kaifa", info.Manufacturer)
	assert.Equal(t, "4B464D6750000009", info.SerialNumber)
	assert.Equal(t, "energyMeter", info.Type)
	assert.Len(t, info.Features, 7)
	assert.Contains(t, info.Features, "phase1Voltage")
	assert.NotContains(t, info.Features, "phase2Voltage")
	assert.NotContains(t, info.Features, energyProduced)

	assert.Equal(t, map[string]string{
		currentPower:         "1234",
		currentPowerProduced: "56",
		currentPowerNet:      "1178",
		energyUsed:           "12345.678",
		"phase1Current":      "1.520",
		"phase1Voltage":      "230.5",
		powerFactor:          "0.987",
	}, f.updates)

	// The device is only announced once
	require.NoError(t, d.Publish(testReading))
	assert.Len(t, f.created, 1)
}

func TestDeviceFactoryError(t *testing.T) {
	f := &fakeDevice{updates: map[string]string{}, err: errors.New("not connected")}
	d := NewDevice("powerMeter/house", "House", f.factory)

	assert.Error(t, d.Publish(testReading))
	assert.Empty(t, f.updates)

	f.err = nil
	require.NoError(t, d.Publish(testReading))
	assert.Len(t, f.created, 1)
}

func TestDeviceUpdateError(t *testing.T) {
	d := NewDevice("powerMeter/house", "House", func(*device.Info) (Updater, error) {
		return func(feature, value string) error {
			if feature == powerFactor {
				return errors.New("publish failed")
			}
			return nil
		}, nil
	})
	err := d.Publish(testReading)
	require.Error(t, err)
	assert.Contains(t, err.Error(), powerFactor)
}

func TestMulti(t *testing.T) {
	var got []string
	errBoom := errors.New("boom")
	m := Multi{
		meter.PublisherFunc(func(meter.Reading) error { got = append(got, "a"); return errBoom }),
		meter.PublisherFunc(func(meter.Reading) error { got = append(got, "b"); return nil }),
	}
	err := m.Publish(testReading)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"a", "b"}, got)
}
