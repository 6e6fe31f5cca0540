package publish

import (
	"errors"
	"fmt"
	"sync"

	"lib.hemtjan.st/device"
	"lib.hemtjan.st/feature"

	"hemtjan.st/mbusmeter/meter"
	"hemtjan.st/mbusmeter/obis"
)

const (
	// Re-use currentPower from hemtjanst for positive power (i.e. power flowing into the system from the grid)
	currentPower = string(feature.CurrentPower)
	// Define a custom feature for produced power (e.g. if exporting Solar power to the grid)
	currentPowerProduced = "currentPowerProduced"
	currentPowerNet      = "currentPowerNet"
	energyUsed           = string(feature.EnergyUsed)
	energyProduced       = "energyProduced"
	phaseCurrent         = "phase%dCurrent"
	phaseVoltage         = "phase%dVoltage"
	powerFactor          = "powerFactor"
)

type featureValue struct {
	key     string
	feature string
	format  string
}

var features = []featureValue{
	// Watts
	{obis.PowerImport, currentPower, "%.0f"},
	{obis.PowerExport, currentPowerProduced, "%.0f"},
	{obis.PowerNet, currentPowerNet, "%.0f"},
	// kWh
	{obis.EnergyImport, energyUsed, "%.3f"},
	{obis.EnergyExport, energyProduced, "%.3f"},
	{obis.Current1, fmt.Sprintf(phaseCurrent, 1), "%.3f"},
	{obis.Current2, fmt.Sprintf(phaseCurrent, 2), "%.3f"},
	{obis.Current3, fmt.Sprintf(phaseCurrent, 3), "%.3f"},
	{obis.Voltage1, fmt.Sprintf(phaseVoltage, 1), "%.1f"},
	{obis.Voltage2, fmt.Sprintf(phaseVoltage, 2), "%.1f"},
	{obis.Voltage3, fmt.Sprintf(phaseVoltage, 3), "%.1f"},
	{obis.PowerFactor, powerFactor, "%.3f"},
}

// Updater sets a feature of a hemtjanst device.
type Updater func(feature, value string) error

// DeviceFactory announces a device and returns its Updater.
type DeviceFactory func(info *device.Info) (Updater, error)

// Device publishes readings as a hemtjanst energy meter.
type Device struct {
	Topic        string
	Name         string
	Manufacturer string

	mu      sync.Mutex
	factory DeviceFactory
	update  Updater
}

func NewDevice(topic, name string, factory DeviceFactory) *Device {
	return &Device{
		Topic:        topic,
		Name:         name,
		Manufacturer: "Kaifa",
		factory:      factory,
	}
}

func (d *Device) Publish(r meter.Reading) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.update == nil {
		// Device is created once the first reading is received
		// since we need to know which features are supported
		info := &device.Info{
			Topic:        d.Topic,
			Name:         d.Name,
			Manufacturer: d.Manufacturer,
			Features:     map[string]*feature.Info{},
			SerialNumber: r.SystemTitle,
			Type:         "energyMeter",
		}
		for _, f := range features {
			if _, ok := r.Values[f.key]; ok {
				info.Features[f.feature] = &feature.Info{}
			}
		}
		update, err := d.factory(info)
		if err != nil {
			return fmt.Errorf("creating device %s: %w", d.Topic, err)
		}
		d.update = update
	}

	var errs []error
	for _, f := range features {
		v, ok := r.Values[f.key]
		if !ok {
			continue
		}
		if err := d.update(f.feature, fmt.Sprintf(f.format, v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.feature, err))
		}
	}
	return errors.Join(errs...)
}
