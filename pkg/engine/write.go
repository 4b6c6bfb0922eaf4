package engine

import (
	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/eemerr"
	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/samsamfire/eemclient/pkg/queue"
)

// WriteAO performs a read-modify-write against the device's cached AO
// vector: copy it, mutate index, and enqueue a WB request carrying the
// full vector back (DO omitted when unchanged).
func (e *Engine) WriteAO(id block.Id, index int, value float32) error {
	d := e.devices.Find(id)
	if d == nil {
		return eemerr.ErrUnknownBlock
	}
	if index < 0 || index >= len(d.Data.AO) {
		return &eemerr.ValidationError{Field: "ao_index", Reason: "out of range", Limit: len(d.Data.AO), Actual: index}
	}
	scratch := append([]float32(nil), d.Data.AO...)
	scratch[index] = value
	return e.writeBack(d, scratch, nil)
}

// WriteDO mutates a single DO bit via the same read-modify-write pattern.
func (e *Engine) WriteDO(id block.Id, index int, value bool) error {
	d := e.devices.Find(id)
	if d == nil {
		return eemerr.ErrUnknownBlock
	}
	if index < 0 || index >= len(d.Data.DO) {
		return &eemerr.ValidationError{Field: "do_index", Reason: "out of range", Limit: len(d.Data.DO), Actual: index}
	}
	scratch := append([]bool(nil), d.Data.DO...)
	scratch[index] = value
	return e.writeBack(d, nil, scratch)
}

// writeBack serializes ao/do into a WB request and enqueues it; either
// vector may be nil to omit that section, matching the device's
// variable-length WB payloads (e.g. DO section omitted on an AO-only
// write).
func (e *Engine) writeBack(d *device.Device, ao []float32, do []bool) error {
	aoHex := make([]byte, 0, len(ao)*8)
	for _, f := range ao {
		aoHex = append(aoHex, []byte(frame.EncodeFloat(f))...)
	}
	doHex := []byte(frame.PackBits(do))

	payload := frame.JoinFields([]byte("WB"+string(d.ID)), aoHex, doHex)
	e.q.Enqueue(&queue.Request{Payload: payload})

	if ao != nil {
		d.Data.AO = ao
	}
	if do != nil {
		d.Data.DO = do
	}
	return nil
}

// ConfigKind names one of the abstract configuration values SetConfigFloat
// dispatches to a concrete AO write. It is a plain string alias (rather
// than a distinct defined type) so pkg/config's Writer interface — which
// cannot import pkg/engine without a cycle — can be satisfied
// structurally by *Engine.
type ConfigKind = string

const (
	ConfigFloatVoltage          ConfigKind = "float_voltage"
	ConfigLVD1Voltage           ConfigKind = "lvd1_voltage"
	ConfigLVD2Voltage           ConfigKind = "lvd2_voltage"
	ConfigBLVDVoltage           ConfigKind = "blvd_voltage"
	ConfigDCMaxCurrent          ConfigKind = "dc_max_current"
	ConfigBatteryHighTemp       ConfigKind = "battery_high_temp"
	ConfigBatteryLowTemp        ConfigKind = "battery_low_temp"
	ConfigBatNominalCap         ConfigKind = "bat_nominal_capacity"
	ConfigLVDDisconnectTime     ConfigKind = "lvd_disconnect_time_1"
	ConfigLVDDisconnectVoltage1 ConfigKind = "lvd_disconnect_voltage_1"
	ConfigLVDReconnectVoltage1  ConfigKind = "lvd_reconnect_voltage_1"
)

// lvdBlockID is the LVD block all LVD config kinds address.
const lvdBlockID = block.Id("0701")

// AO indices within the LVD block, matching pkg/block's "07" registry
// entry (disconnect_time_1, disconnect_voltage_1, reconnect_voltage_1, ...).
const (
	lvdDisconnectTimeIdx    = 0
	lvdDisconnectVoltageIdx = 1
	lvdReconnectVoltageIdx  = 2
)

// systemAOIndex maps the System-block config kinds onto their AO index.
var systemAOIndex = map[ConfigKind]int{
	ConfigFloatVoltage:    0,
	ConfigLVD1Voltage:     1,
	ConfigLVD2Voltage:     2,
	ConfigBLVDVoltage:     3,
	ConfigDCMaxCurrent:    4,
	ConfigBatteryHighTemp: 5,
	ConfigBatteryLowTemp:  6,
}

// DisconnectTimeMin/Max bound the LVD disconnect-time range check.
const (
	DisconnectTimeMin = 0.0
	DisconnectTimeMax = 600.0
)

// CanSetConfigFloat reports whether kind is a recognized, settable
// configuration value.
func (e *Engine) CanSetConfigFloat(kind ConfigKind) bool {
	if _, ok := systemAOIndex[kind]; ok {
		return true
	}
	switch kind {
	case ConfigBatNominalCap, ConfigLVDDisconnectTime, ConfigLVDDisconnectVoltage1, ConfigLVDReconnectVoltage1:
		return true
	}
	return false
}

// SetConfigFloat is the central configuration dispatcher: it validates
// cross-field constraints before issuing any wire traffic, then routes to
// the appropriate low-level AO write.
func (e *Engine) SetConfigFloat(kind ConfigKind, value float32) error {
	system := e.devices.Find(block.Id("0000"))

	if idx, ok := systemAOIndex[kind]; ok {
		if err := e.validateSystemConfig(system, kind, value); err != nil {
			return err
		}
		return e.WriteAO(block.Id("0000"), idx, value)
	}

	switch kind {
	case ConfigBatNominalCap:
		return e.WriteAO(block.Id("0300"), 0, value)
	case ConfigLVDDisconnectTime:
		if value < DisconnectTimeMin || value > DisconnectTimeMax {
			return &eemerr.ValidationError{Field: string(kind), Reason: "outside disconnect-time range", Limit: [2]float64{DisconnectTimeMin, DisconnectTimeMax}, Actual: value}
		}
		return e.WriteAO(lvdBlockID, lvdDisconnectTimeIdx, value)
	case ConfigLVDDisconnectVoltage1, ConfigLVDReconnectVoltage1:
		lvd := e.devices.Find(lvdBlockID)
		if err := e.validateLVDConfig(lvd, kind, value); err != nil {
			return err
		}
		idx := lvdDisconnectVoltageIdx
		if kind == ConfigLVDReconnectVoltage1 {
			idx = lvdReconnectVoltageIdx
		}
		return e.WriteAO(lvdBlockID, idx, value)
	}
	return &eemerr.ValidationError{Field: string(kind), Reason: "unknown config kind"}
}

// validateSystemConfig enforces the LVD1 >= LVD2 >= BLVD ordering
// invariant across disconnect voltages.
func (e *Engine) validateSystemConfig(system *device.Device, kind ConfigKind, value float32) error {
	if system == nil || len(system.Data.AO) < 4 {
		return nil
	}
	lvd1, lvd2, blvd := float32(system.Data.AO[1]), float32(system.Data.AO[2]), float32(system.Data.AO[3])
	switch kind {
	case ConfigLVD1Voltage:
		lvd1 = value
	case ConfigLVD2Voltage:
		lvd2 = value
	case ConfigBLVDVoltage:
		blvd = value
	}
	if lvd1 < lvd2 {
		return &eemerr.ValidationError{Field: "lvd1_voltage", Reason: "must be >= lvd2_voltage", Limit: lvd2, Actual: lvd1}
	}
	if lvd2 < blvd {
		return &eemerr.ValidationError{Field: "lvd2_voltage", Reason: "must be >= blvd_voltage", Limit: blvd, Actual: lvd2}
	}
	return nil
}

// validateLVDConfig enforces the LVD reconnect-voltage >= disconnect-voltage
// invariant: reconnecting the load below its disconnect threshold would
// never let the contactor close again.
func (e *Engine) validateLVDConfig(lvd *device.Device, kind ConfigKind, value float32) error {
	if lvd == nil || len(lvd.Data.AO) <= lvdReconnectVoltageIdx {
		return nil
	}
	disconnect, reconnect := lvd.Data.AO[lvdDisconnectVoltageIdx], lvd.Data.AO[lvdReconnectVoltageIdx]
	switch kind {
	case ConfigLVDDisconnectVoltage1:
		disconnect = value
	case ConfigLVDReconnectVoltage1:
		reconnect = value
	}
	if reconnect < disconnect {
		return &eemerr.ValidationError{Field: "lvd_reconnect_voltage_1", Reason: "must be >= lvd_disconnect_voltage_1", Limit: disconnect, Actual: reconnect}
	}
	return nil
}

// RoundConfigFloat rounds voltage-like kinds to millivolts, other kinds to
// milli-units, matching the writer API's round_config_float.
func (e *Engine) RoundConfigFloat(kind ConfigKind, value float32) float32 {
	const milli = 1000
	return float32(int(value*milli+0.5)) / milli
}

// RectifierEnable sets DO0 on the named rectifier, inverted: enable=true
// clears the bit.
func (e *Engine) RectifierEnable(id block.Id, enable bool) error {
	return e.WriteDO(id, 0, !enable)
}

// BatteryTest issues a DO write against the battery group's
// start/stop/auto test bits.
const (
	doBatteryTestStart = 8
	doBatteryTestStop  = 10
	doBatteryTestAuto  = 12
)

func (e *Engine) BatteryTest(start bool) error {
	id := block.Id("0300")
	if err := e.WriteDO(id, doBatteryTestStart, start); err != nil {
		return err
	}
	return e.WriteDO(id, doBatteryTestStop, !start)
}

// SetContactors applies setMask/clrMask against the System block's
// contactor DO bits (DO8, DO10, DO12).
var contactorDOIndices = [3]int{8, 10, 12}

func (e *Engine) SetContactors(setMask, clrMask uint8) error {
	id := block.Id("0000")
	d := e.devices.Find(id)
	if d == nil {
		return eemerr.ErrUnknownBlock
	}
	scratch := append([]bool(nil), d.Data.DO...)
	for i, doIdx := range contactorDOIndices {
		bit := uint8(1) << i
		if setMask&bit != 0 {
			scratch[doIdx] = true
		}
		if clrMask&bit != 0 {
			scratch[doIdx] = false
		}
	}
	return e.writeBack(d, nil, scratch)
}

// SetBoostCharge toggles the battery group's boost-charge bits.
func (e *Engine) SetBoostCharge(enable bool) error {
	return e.WriteDO(block.Id("0300"), 14, enable)
}
