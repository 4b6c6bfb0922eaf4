package block

import "errors"

var errUnknownBlock = errors.New("unknown block class")

// Scope is the alarm namespace an AlarmEntry is raised against — the
// managed-object sink routes each scope to a different target on the
// device tree.
type Scope int

const (
	ScopeSystem Scope = iota
	ScopeInput
	ScopeOutput
)

// Severity is the normalized alarm severity, derived from the report's
// category byte with a fallback of Warning for anything unrecognized.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityMajor
	SeverityMinor
	SeverityWarning
)

// SeverityFromCategory maps the RC sweep's category hex digit to a
// Severity, defaulting to warning for any value outside 0-3.
func SeverityFromCategory(cat int) Severity {
	switch cat {
	case 0:
		return SeverityCritical
	case 1:
		return SeverityMajor
	case 2:
		return SeverityMinor
	default:
		return SeverityWarning
	}
}

// Kind names a specific alarm within its Scope, e.g. "IN_FAIL" for a
// rectifier's input failure. PWR_IGNORE decodes the index (advances the
// scan) but raises nothing.
type Kind string

const (
	KindIgnore Kind = "PWR_IGNORE"

	KindRectGroupFail   Kind = "RECT_GROUP_FAIL"
	KindRectGroupLost   Kind = "RECT_GROUP_LOST"
	KindRectInFail      Kind = "IN_FAIL"
	KindRectMainsFail   Kind = "MAINS_FAIL"
	KindRectOverVoltage Kind = "OVER_VOLTAGE"
	KindRectHighTemp    Kind = "HIGH_TEMP"
	KindRectLimit       Kind = "LIMIT"
	KindRectFanFail     Kind = "FAN_FAIL"

	KindBatDischarge   Kind = "BAT_DISCHARGE"
	KindBatTestRunning Kind = "BAT_TEST_RUNNING"
	KindBatFuseOpen    Kind = "FUSE_OPEN"

	KindLVDContactorOpen Kind = "LVD_CONTACTOR_OPEN"

	KindSolarFail Kind = "SOLAR_FAIL"
	KindSolarLost Kind = "SOLAR_LOST"

	KindSysUnderVoltage   Kind = "UNDER_VOLTAGE"
	KindSysUnderVoltage2  Kind = "UNDER_VOLTAGE_2"
	KindSysBatteryDisc    Kind = "BATTERY_DISCONNECT"
	KindSysCommFailure    Kind = "COMM_FAILURE"
	KindDCFuseOpen        Kind = "DC_FUSE_OPEN"
	KindACMainsFail       Kind = "AC_MAINS_FAIL"
)

// AlarmEntry is one row of a class's static alarm map: the bit identifying
// the alarm within its scope, and the scope it is routed to.
type AlarmEntry struct {
	Kind  Kind
	Bit   int
	Scope Scope
}

// NCURemap carries the NCU-only remap for an otherwise-plain table entry;
// applied only when the engine's ControllerFlavor is NCU.
type NCURemap struct {
	Index int
	Entry AlarmEntry
}

var systemAlarms = map[int]AlarmEntry{
	0: {Kind: KindSysUnderVoltage, Bit: 0, Scope: ScopeSystem},
	1: {Kind: KindSysUnderVoltage2, Bit: 1, Scope: ScopeSystem},
	2: {Kind: KindIgnore, Bit: 2, Scope: ScopeSystem},
}

// systemNCURemap overrides entries of systemAlarms when the controller is
// an NCU: undervoltage-2 of System remaps to BATTERY_DISCONNECT.
var systemNCURemap = map[int]AlarmEntry{
	1: {Kind: KindSysBatteryDisc, Bit: 1, Scope: ScopeSystem},
}

var rectifierGroupAlarms = map[int]AlarmEntry{
	0: {Kind: KindRectGroupFail, Bit: 0, Scope: ScopeOutput},
	1: {Kind: KindRectGroupLost, Bit: 1, Scope: ScopeOutput},
	2: {Kind: KindRectMainsFail, Bit: 2, Scope: ScopeOutput},
	3: {Kind: KindRectInFail, Bit: 0, Scope: ScopeInput},
	4: {Kind: KindRectOverVoltage, Bit: 1, Scope: ScopeInput},
	5: {Kind: KindRectHighTemp, Bit: 2, Scope: ScopeInput},
	6: {Kind: KindRectLimit, Bit: 3, Scope: ScopeInput},
	7: {Kind: KindRectFanFail, Bit: 4, Scope: ScopeInput},
}

var batteryAlarms = map[int]AlarmEntry{
	0: {Kind: KindBatDischarge, Bit: 0, Scope: ScopeOutput},
	1: {Kind: KindBatTestRunning, Bit: 1, Scope: ScopeOutput},
}

var batteryFuseAlarms = map[int]AlarmEntry{
	0: {Kind: KindBatFuseOpen, Bit: 0, Scope: ScopeOutput},
}

// dcDistributionFuseNCURemap is the per-index remap table for the
// DC-distribution-fuse block under NCU controllers.
var dcDistributionFuseNCURemap = map[int]AlarmEntry{
	0: {Kind: KindDCFuseOpen, Bit: 0, Scope: ScopeOutput},
}

var dcDistributionAlarms = map[int]AlarmEntry{
	0: {Kind: KindDCFuseOpen, Bit: 0, Scope: ScopeOutput},
}

var lvdAlarms = map[int]AlarmEntry{
	0: {Kind: KindLVDContactorOpen, Bit: 0, Scope: ScopeOutput},
}

var acAlarms = map[int]AlarmEntry{
	0: {Kind: KindACMainsFail, Bit: 0, Scope: ScopeSystem},
}

var solarAlarms = map[int]AlarmEntry{
	0: {Kind: KindSolarFail, Bit: 0, Scope: ScopeOutput},
	1: {Kind: KindSolarLost, Bit: 1, Scope: ScopeOutput},
}

// Remap resolves (class, alarmIndex) to an AlarmEntry, applying the NCU
// remap table in place of the plain entry when ncu is true, via explicit
// per-class composition rather than a shared switch fall-through.
func Remap(info ClassInfo, alarmIndex int, ncu bool) (AlarmEntry, bool) {
	if ncu {
		switch info.Class {
		case ClassSystem:
			if e, ok := systemNCURemap[alarmIndex]; ok {
				return e, true
			}
		case ClassDCDistribution:
			if e, ok := dcDistributionFuseNCURemap[alarmIndex]; ok {
				return e, true
			}
		}
	}
	e, ok := info.AlarmMap[alarmIndex]
	return e, ok
}
