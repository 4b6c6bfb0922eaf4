// Package device models the discovered plant tree: an ordered list of
// Devices, each owning the four parallel vectors last read back from the
// block's RB response.
package device

import (
	"github.com/samsamfire/eemclient/pkg/block"
)

// BlockData holds the four nullable vectors of one RB response. A vector
// is nil until the first successful RB response carrying that section.
// DI and DO, once present, have exactly the class's declared count; AI and
// AO hold as many float words as the response carried, which is not
// checked against the class's declared count.
type BlockData struct {
	AI []float32
	AO []float32
	DI []bool
	DO []bool
}

// Device is one node of the discovered plant tree, identified by its
// block id and owning its most recently decoded BlockData.
type Device struct {
	ID       block.Id
	Name     string
	Class    block.ClassInfo
	Data     BlockData
	LastSeen int64 // unix seconds of the last RB response in which a rectifier reported itself active; zero for other classes

	// Active reflects the class-specific "is this unit actually present
	// and running" reading (e.g. a rectifier's ¬(DI4∨DI14)).
	Active bool
	// Mode is the class-specific operating mode label (e.g. a battery's
	// TEST/BOOST/FLOAT).
	Mode string
	// Readings holds the per-class reader's normalized numeric outputs
	// (voltage, current, power, temperature, ...), keyed by field name.
	Readings map[string]float64
	// Inventory holds free-form string attributes stamped by out-of-band
	// enrichment (e.g. SNMP model/serial/firmware fields), keyed by name.
	// Unlike Readings this is never populated by RB decoding.
	Inventory map[string]string
}

// List is the Engine's ordered, owning container of discovered Devices.
// Discovery requires insertion at either end (the rectifier-group-first
// invariant demands head insertion for groups), so List keeps an ordered
// slice alongside an id index; PushFront copies the slice.
type List struct {
	items []*Device
	index map[block.Id]*Device
}

// NewList returns an empty device list.
func NewList() *List {
	return &List{index: make(map[block.Id]*Device)}
}

// Find returns the device with the given id, or nil.
func (l *List) Find(id block.Id) *Device {
	return l.index[id]
}

// PushFront inserts d at the head of the list — used for block classes
// that must precede all other discovered devices (the rectifier group).
func (l *List) PushFront(d *Device) {
	l.items = append([]*Device{d}, l.items...)
	l.index[d.ID] = d
}

// PushBack appends d to the tail of the list — the default discovery
// insertion point.
func (l *List) PushBack(d *Device) {
	l.items = append(l.items, d)
	l.index[d.ID] = d
}

// Ensure returns the existing device for id, or creates, registers and
// returns a new one at the given insertion point (front for rectifier
// groups, per the discovery-ordering invariant; back otherwise).
func (l *List) Ensure(id block.Id, front bool) (*Device, bool) {
	if existing := l.Find(id); existing != nil {
		return existing, false
	}
	info, err := block.Lookup(id)
	if err != nil {
		info = block.ClassInfo{}
	}
	d := &Device{ID: id, Class: info}
	if front {
		l.PushFront(d)
	} else {
		l.PushBack(d)
	}
	return d, true
}

// All returns the devices in their current list order.
func (l *List) All() []*Device {
	return l.items
}

// Len reports the number of devices currently tracked.
func (l *List) Len() int {
	return len(l.items)
}

// ClearData drops every device's cached vectors without removing the
// devices themselves — used on reconnect-induced "lost" to clear
// per-device decoded vectors while keeping the device list intact.
func (l *List) ClearData() {
	for _, d := range l.items {
		d.Data = BlockData{}
	}
}
