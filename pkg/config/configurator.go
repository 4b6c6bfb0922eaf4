package config

import "github.com/samsamfire/eemclient/pkg/block"

// Writer is the subset of *engine.Engine the write-path configurators
// need. Defined here (not in pkg/engine) so pkg/config has no import-time
// dependency on pkg/engine — engine.Engine satisfies Writer structurally.
type Writer interface {
	SetConfigFloat(kind ConfigFloatKind, value float32) error
	CanSetConfigFloat(kind ConfigFloatKind) bool
	RoundConfigFloat(kind ConfigFloatKind, value float32) float32
	RectifierEnable(id block.Id, enable bool) error
	BatteryTest(start bool) error
	SetContactors(setMask, clrMask uint8) error
	SetBoostCharge(enable bool) error
}

// ConfigFloatKind mirrors engine.ConfigKind; declared independently so
// pkg/config does not import pkg/engine.
type ConfigFloatKind = string

// Configurator is the write-path entry point: a thin dispatch to the
// engine composed from per-concern sub-configurators (voltage, contactor,
// battery, rectifier) instead of exposing one giant setter function.
type Configurator struct {
	Voltage    *VoltageConfigurator
	Contactor  *ContactorConfigurator
	BatteryOps *BatteryConfigurator
	Rectifier  *RectifierConfigurator
}

// NewConfigurator composes a Configurator around w.
func NewConfigurator(w Writer) *Configurator {
	return &Configurator{
		Voltage:    &VoltageConfigurator{w: w},
		Contactor:  &ContactorConfigurator{w: w},
		BatteryOps: &BatteryConfigurator{w: w},
		Rectifier:  &RectifierConfigurator{w: w},
	}
}

// VoltageConfigurator sets float/LVD/BLVD/current-limit configuration
// values, all routed through the engine's validating central dispatch.
type VoltageConfigurator struct{ w Writer }

func (c *VoltageConfigurator) SetFloatVoltage(v float32) error {
	return c.w.SetConfigFloat("float_voltage", c.w.RoundConfigFloat("float_voltage", v))
}

func (c *VoltageConfigurator) SetLVD1Voltage(v float32) error {
	return c.w.SetConfigFloat("lvd1_voltage", c.w.RoundConfigFloat("lvd1_voltage", v))
}

func (c *VoltageConfigurator) SetLVD2Voltage(v float32) error {
	return c.w.SetConfigFloat("lvd2_voltage", c.w.RoundConfigFloat("lvd2_voltage", v))
}

func (c *VoltageConfigurator) SetBLVDVoltage(v float32) error {
	return c.w.SetConfigFloat("blvd_voltage", c.w.RoundConfigFloat("blvd_voltage", v))
}

func (c *VoltageConfigurator) SetDCMaxCurrent(v float32) error {
	return c.w.SetConfigFloat("dc_max_current", v)
}

func (c *VoltageConfigurator) SetLVDDisconnectVoltage1(v float32) error {
	return c.w.SetConfigFloat("lvd_disconnect_voltage_1", c.w.RoundConfigFloat("lvd_disconnect_voltage_1", v))
}

func (c *VoltageConfigurator) SetLVDReconnectVoltage1(v float32) error {
	return c.w.SetConfigFloat("lvd_reconnect_voltage_1", c.w.RoundConfigFloat("lvd_reconnect_voltage_1", v))
}

// ContactorConfigurator drives the System block's load/battery contactors.
type ContactorConfigurator struct{ w Writer }

func (c *ContactorConfigurator) Set(setMask, clrMask uint8) error {
	return c.w.SetContactors(setMask, clrMask)
}

// BatteryConfigurator drives battery test and boost-charge.
type BatteryConfigurator struct{ w Writer }

func (c *BatteryConfigurator) StartTest() error { return c.w.BatteryTest(true) }
func (c *BatteryConfigurator) StopTest() error  { return c.w.BatteryTest(false) }
func (c *BatteryConfigurator) SetBoostCharge(enable bool) error {
	return c.w.SetBoostCharge(enable)
}

// RectifierConfigurator enables/disables a named rectifier.
type RectifierConfigurator struct{ w Writer }

func (c *RectifierConfigurator) Enable(id block.Id, enable bool) error {
	return c.w.RectifierEnable(id, enable)
}
