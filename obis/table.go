package obis

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Descriptor describes how a register is reported.
type Descriptor struct {
	// Code is the OBIS code as 12 upper-case hex digits, empty for derived values
	Code      string
	Key       string
	Unit      string
	Transform Transform
}

// Measurement keys
const (
	Voltage1     = "voltage_1"
	Voltage2     = "voltage_2"
	Voltage3     = "voltage_3"
	Current1     = "current_1"
	Current2     = "current_2"
	Current3     = "current_3"
	PowerImport  = "power_import"
	PowerExport  = "power_export"
	EnergyImport = "energy_import"
	EnergyExport = "energy_export"
	PowerFactor  = "power_factor"
	PowerNet     = "power_net"
)

// Table lists the registers pushed by the meter. Derived entries come last.
var Table = []Descriptor{
	{"0100200700FF", Voltage1, "V", Linear(0.1)},
	{"0100340700FF", Voltage2, "V", Linear(0.1)},
	{"0100480700FF", Voltage3, "V", Linear(0.1)},
	{"01001F0700FF", Current1, "A", Linear(0.01)},
	{"0100330700FF", Current2, "A", Linear(0.01)},
	{"0100470700FF", Current3, "A", Linear(0.01)},
	{"0100010700FF", PowerImport, "W", Identity()},
	{"0100020700FF", PowerExport, "W", Identity()},
	{"0100010800FF", EnergyImport, "kWh", Linear(0.001)},
	{"0100020800FF", EnergyExport, "kWh", Linear(0.001)},
	{"01000D0700FF", PowerFactor, "", Linear(0.001)},
	{"", PowerNet, "W", Difference(PowerImport, PowerExport)},
}

var byCode = func() map[string]Descriptor {
	m := map[string]Descriptor{}
	for _, d := range Table {
		if d.Code != "" {
			m[d.Code] = d
		}
	}
	return m
}()

// Lookup returns the descriptor for a code or record key.
func Lookup(name string) (Descriptor, bool) {
	if d, ok := byCode[strings.ToUpper(name)]; ok {
		return d, true
	}
	for _, d := range Table {
		if d.Key == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// FormatCode renders a hex OBIS code in reduced ID notation, A-B:C.D.E.F.
func FormatCode(code string) (string, error) {
	buf, err := hex.DecodeString(code)
	if err != nil {
		return "", fmt.Errorf("obis code %q: %w", code, err)
	}
	if len(buf) != 6 {
		return "", fmt.Errorf("obis code %q: expected 6 bytes, got %d", code, len(buf))
	}
	return fmt.Sprintf("%d-%d:%d.%d.%d.%d", buf[0], buf[1], buf[2], buf[3], buf[4], buf[5]), nil
}
