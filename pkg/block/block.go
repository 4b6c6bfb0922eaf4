// Package block holds the static, read-only block-class registry: per
// block id, the class byte-prefix taxonomy, AI/AO/DI/DO arities, parameter
// names and the alarm map consulted by the poll loop's alarm sweep.
package block

import "fmt"

// Class identifies a block's device class, derived from the top two
// bytes of its 4-hex-digit block id.
type Class int

const (
	ClassUnknown Class = iota
	ClassSystem
	ClassRectifierGroup
	ClassRectifier
	ClassBatteryGroup
	ClassBatteryUnit
	ClassDCDistribution
	ClassEIB
	ClassBatteryFuse
	ClassLVDGroup
	ClassLVDUnit
	ClassAC
	ClassSolarGroup
	ClassSolarConverter
)

func (c Class) String() string {
	switch c {
	case ClassSystem:
		return "System"
	case ClassRectifierGroup:
		return "RectifierGroup"
	case ClassRectifier:
		return "Rectifier"
	case ClassBatteryGroup:
		return "BatteryGroup"
	case ClassBatteryUnit:
		return "BatteryUnit"
	case ClassDCDistribution:
		return "DCDistribution"
	case ClassEIB:
		return "EIB"
	case ClassBatteryFuse:
		return "BatteryFuse"
	case ClassLVDGroup:
		return "LVDGroup"
	case ClassLVDUnit:
		return "LVDUnit"
	case ClassAC:
		return "AC"
	case ClassSolarGroup:
		return "SolarGroup"
	case ClassSolarConverter:
		return "SolarConverter"
	default:
		return "Unknown"
	}
}

// Id is a 4-hex-digit block identifier, e.g. "0200" (rectifier group) or
// "0201" (the first individual rectifier).
type Id string

// ClassByte returns the first two hex digits of the id — the class
// discriminant.
func (id Id) ClassByte() string {
	if len(id) < 2 {
		return ""
	}
	return string(id)[:2]
}

// IsGroup reports whether id names a "...00" group member (e.g. "0200",
// "2600") rather than an individual unit.
func (id Id) IsGroup() bool {
	return len(id) == 4 && id[2:] == "00"
}

// ClassInfo is the static, immutable per-class descriptor: arity of the
// four parallel vectors, the parameter names for each, and the alarm map.
type ClassInfo struct {
	Class    Class
	AICount  int
	AOCount  int
	DICount  int
	DOCount  int
	AINames  []string
	AONames  []string
	DINames  []string
	DONames  []string
	AlarmMap map[int]AlarmEntry
}

// registry is keyed by the 2-hex-digit class byte. It is built once at
// package init and never mutated afterward.
var registry = map[string]ClassInfo{
	"00": {
		Class:   ClassSystem,
		AICount: 16,
		AOCount: 26,
		DICount: 8,
		DOCount: 16,
		AINames: []string{
			"voltage", "current", "power", "reserved3", "reserved4", "reserved5",
			"ambient_temp", "reserved7", "reserved8", "reserved9",
			"battery_temp_1", "battery_temp_2", "battery_temp_3", "ambient_temp_ncu",
		},
		AONames: []string{
			"float_voltage", "lvd1_voltage", "lvd2_voltage", "blvd_voltage",
			"dc_max_current", "battery_high_temp", "battery_low_temp",
		},
		AlarmMap: systemAlarms,
	},
	"02": {
		Class:   ClassRectifierGroup,
		AICount: 6,
		AOCount: 4,
		DICount: 4,
		DOCount: 2,
		AINames: []string{"voltage", "current", "reserved2", "reserved3", "reserved4", "installed_count"},
		AONames: []string{"reserved0", "input_current_limit"},
		AlarmMap: rectifierGroupAlarms,
	},
	"03": {
		Class:   ClassBatteryGroup,
		AICount: 4,
		AOCount: 8,
		DICount: 20,
		DOCount: 8,
		AINames: []string{"voltage", "current", "temperature", "capacity_remaining"},
		AlarmMap: batteryAlarms,
	},
	"04": {
		Class:    ClassDCDistribution,
		AICount:  6,
		AONames:  nil,
		AlarmMap: dcDistributionAlarms,
	},
	"05": {
		Class:    ClassBatteryFuse,
		AICount:  2,
		DICount:  4,
		AlarmMap: batteryFuseAlarms,
	},
	"07": {
		Class:   ClassLVDGroup,
		AICount: 2,
		AOCount: 9,
		DICount: 3,
		DOCount: 3,
		AONames: []string{
			"disconnect_time_1", "disconnect_voltage_1", "reconnect_voltage_1",
			"disconnect_time_2", "disconnect_voltage_2", "reconnect_voltage_2",
			"disconnect_time_3", "disconnect_voltage_3", "reconnect_voltage_3",
		},
		AlarmMap: lvdAlarms,
	},
	"09": {
		Class:    ClassAC,
		AICount:  3,
		DICount:  2,
		AlarmMap: acAlarms,
	},
	"26": {
		Class:   ClassSolarGroup,
		AICount: 6,
		AOCount: 2,
		DICount: 4,
		DOCount: 2,
		AINames: []string{"voltage", "current", "reserved2", "reserved3", "reserved4", "installed_count"},
		AlarmMap: solarAlarms,
	},
}

// individualOf maps a group class to the class its singular members
// decode as (a "0201" rectifier still looks up the "02" table but is not
// itself a group).
var individualOf = map[Class]Class{
	ClassRectifierGroup: ClassRectifier,
	ClassSolarGroup:     ClassSolarConverter,
}

// Lookup resolves a block id to its ClassInfo. The group/individual split
// within one class byte (e.g. rectifier group "0200" vs rectifier "0201")
// is resolved via IsGroup; individualOf supplies the non-group Class label
// while the vector arities/alarm map stay keyed by class byte.
func Lookup(id Id) (ClassInfo, error) {
	info, ok := registry[id.ClassByte()]
	if !ok {
		return ClassInfo{}, fmt.Errorf("block: %w: %s", errUnknownBlock, id)
	}
	if !id.IsGroup() {
		if individual, ok := individualOf[info.Class]; ok {
			info.Class = individual
		}
	}
	return info, nil
}
