package engine

import (
	"time"

	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/mosink"
)

func nowUnix() int64 { return time.Now().Unix() }

const currentResolution = 0.05 // amps; threshold a negative-current crossing must exceed to raise BAT_DISCHARGE

// applyReader dispatches d to the per-class reader that updates its
// normalized Active/Mode/Readings fields from the raw vectors applyRB
// just decoded.
func applyReader(e *Engine, d *device.Device) {
	if d.Readings == nil {
		d.Readings = map[string]float64{}
	}
	switch d.Class.Class {
	case block.ClassSystem:
		readSystem(e, d)
	case block.ClassRectifierGroup:
		readRectifierGroup(d)
	case block.ClassRectifier:
		readRectifier(d)
	case block.ClassBatteryGroup, block.ClassBatteryUnit:
		readBattery(e, d)
	case block.ClassLVDGroup, block.ClassLVDUnit:
		readLVD(d)
	case block.ClassSolarGroup, block.ClassSolarConverter:
		readSolar(d)
	case block.ClassDCDistribution, block.ClassEIB:
		readDCDistribution(d)
	}
}

func ai(d *device.Device, i int) float64 {
	if i < 0 || i >= len(d.Data.AI) {
		return 0
	}
	return float64(d.Data.AI[i])
}

func ao(d *device.Device, i int) float64 {
	if i < 0 || i >= len(d.Data.AO) {
		return 0
	}
	return float64(d.Data.AO[i])
}

func di(d *device.Device, i int) bool {
	if i < 0 || i >= len(d.Data.DI) {
		return false
	}
	return d.Data.DI[i]
}

// readSystem decodes the System block's environment/power readings and
// its stored configuration floats.
func readSystem(e *Engine, d *device.Device) {
	d.Readings["voltage"] = ai(d, 0)
	d.Readings["current"] = ai(d, 1)
	d.Readings["power_w"] = ai(d, 2) * 1000
	if e.flavor == FlavorNCU {
		d.Readings["ambient_temp"] = ai(d, 13)
		d.Readings["battery_temp_1"] = ai(d, 10)
		d.Readings["battery_temp_2"] = ai(d, 11)
		d.Readings["battery_temp_3"] = ai(d, 12)
	} else {
		d.Readings["ambient_temp"] = ai(d, 6)
		d.Readings["battery_temp_1"] = ai(d, 2)
	}
	d.Readings["float_voltage"] = ao(d, 0)
	d.Readings["lvd1_voltage"] = ao(d, 1)
	d.Readings["lvd2_voltage"] = ao(d, 2)
	d.Readings["blvd_voltage"] = ao(d, 3)
	d.Readings["dc_max_current"] = ao(d, 4)
	d.Readings["battery_high_temp"] = ao(d, 5)
	d.Readings["battery_low_temp"] = ao(d, 6)
}

func readRectifierGroup(d *device.Device) {
	d.Readings["voltage"] = ai(d, 0)
	d.Readings["current"] = ai(d, 1)
	d.Readings["installed_count"] = ai(d, 5)
	d.Readings["input_current_limit"] = ao(d, 1)
	// fail_count is recomputed from sibling rectifiers in the alarm sweep's
	// post-sweep aggregation step, not here.
}

func readRectifier(d *device.Device) {
	d.Active = !(di(d, 4) || di(d, 14))
	d.Readings["v_out"] = ai(d, 0)
	d.Readings["i_out"] = ai(d, 1)
	d.Readings["temperature"] = ai(d, 2)
	d.Readings["utilization"] = ai(d, 3)
	d.Readings["v_in"] = ai(d, 4)
	d.Readings["run_time_s"] = 3600 * ai(d, 5)
	if d.Active {
		d.LastSeen = nowUnix()
	}
}

func readBattery(e *Engine, d *device.Device) {
	d.Readings["voltage"] = ai(d, 0)
	prevCurrent := d.Readings["current"]
	current := ai(d, 1)
	d.Readings["current"] = current
	d.Readings["temperature"] = ai(d, 2)

	boost := di(d, 14) || di(d, 16) || di(d, 18)
	testRunning := di(d, 8) || di(d, 10) || di(d, 12)
	switch {
	case testRunning:
		d.Mode = "TEST"
	case boost:
		d.Mode = "BOOST"
	default:
		d.Mode = "FLOAT"
	}

	if prevCurrent >= 0 && current < 0 && (prevCurrent-current) > currentResolution {
		e.sink.AlarmRaise(e.instanceOf(d), block.KindBatDischarge, 0, block.SeverityWarning)
	}
}

func readLVD(d *device.Device) {
	// DO2 encodes disconnect method (Voltage=0 / Time=1); DI0 encodes
	// contactor state.
	method := "Voltage"
	if len(d.Data.DO) > 2 && d.Data.DO[2] {
		method = "Time"
	}
	d.Mode = method
	d.Active = di(d, 0)
	d.Readings["disconnect_time_1"] = ao(d, 0)
	d.Readings["disconnect_voltage_1"] = ao(d, 1)
	d.Readings["reconnect_voltage_1"] = ao(d, 2)
}

func readSolar(d *device.Device) {
	d.Readings["voltage"] = ai(d, 0)
	d.Readings["current"] = ai(d, 1)
	if d.Class.Class == block.ClassSolarGroup {
		d.Readings["installed_count"] = ai(d, 5)
	}
}

func readDCDistribution(d *device.Device) {
	d.Readings["load1_current"] = ai(d, 0)
	d.Readings["load2_current"] = ai(d, 1)
	d.Readings["loadb_current"] = ai(d, 2)
	d.Readings["voltage"] = ai(d, 3)
}

// instanceOf resolves d's managed-object instance. registerEquipment
// creates one when the device is registered; no local mapping is kept, so
// the lookup is always a sink-level find rather than a local cache.
func (e *Engine) instanceOf(d *device.Device) mosink.Instance {
	if e.rootInstance == nil {
		return nil
	}
	return e.sink.FindChild(e.rootInstance, d.Class.Class, d.ID)
}
