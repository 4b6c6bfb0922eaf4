// Package mosink defines the managed-object sink interface: the
// northbound tree of equipment, alarms and thresholds that the engine
// drives but never owns.
package mosink

import (
	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
)

// Instance is an opaque handle into the managed-object tree, returned by
// Create/FindChild and passed back into the remaining operations.
type Instance any

// Sink is the northbound managed-object tree: alarm database, threshold
// engine and configuration persistence, reached only through this
// interface. All operations are idempotent where the underlying data did
// not change.
type Sink interface {
	// Create instantiates a new equipment node of class under parent,
	// addressed by id, or returns the existing one.
	Create(parent Instance, class block.Class, id block.Id) Instance
	// FindChild looks up an existing child of parent by class and id,
	// returning nil if absent.
	FindChild(parent Instance, class block.Class, id block.Id) Instance
	// SetData pushes a device's decoded vectors onto instance.
	SetData(instance Instance, data device.BlockData)
	// AlarmRaise marks (kind, bit) active at severity on instance.
	AlarmRaise(instance Instance, kind block.Kind, bit int, severity block.Severity)
	// AlarmClear marks (kind, bit) inactive on instance.
	AlarmClear(instance Instance, kind block.Kind, bit int)
	// AlarmClearInactive clears every alarm on instance that was not
	// reaffirmed by the most recent RC sweep (the still list).
	AlarmClearInactive(instance Instance, still map[block.Kind]bool)
	// ThresholdCreate registers a named threshold entry of the given
	// type and attributes on instance.
	ThresholdCreate(instance Instance, name string, kind string, attr map[string]any)
	// ForChildren iterates the direct children of instance.
	ForChildren(instance Instance, fn func(child Instance))
	// FollowReference resolves a cross-tree reference stored on
	// instance under name (e.g. a rectifier's back-reference to its
	// group), returning nil if unset.
	FollowReference(instance Instance, name string) Instance
}
