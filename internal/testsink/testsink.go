// Package testsink is an in-memory mosink.Sink used by engine tests: a
// backend that records created nodes, data and alarms, standing in for a
// real managed-object tree.
package testsink

import (
	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/mosink"
)

type node struct {
	class    block.Class
	id       block.Id
	parent   *node
	children []*node
	data     device.BlockData
	alarms   map[alarmKey]block.Severity
	refs     map[string]*node
}

type alarmKey struct {
	kind block.Kind
	bit  int
}

// Sink is an in-memory mosink.Sink. Zero value is ready to use.
type Sink struct {
	root *node
}

// New returns a Sink with a single root instance (the PowerSystem).
func New() *Sink {
	return &Sink{root: &node{class: block.ClassSystem, refs: map[string]*node{}, alarms: map[alarmKey]block.Severity{}}}
}

// Root returns the root PowerSystem instance.
func (s *Sink) Root() mosink.Instance { return s.root }

func asNode(i mosink.Instance) *node {
	if i == nil {
		return nil
	}
	return i.(*node)
}

func (s *Sink) Create(parent mosink.Instance, class block.Class, id block.Id) mosink.Instance {
	p := asNode(parent)
	if existing := s.FindChild(parent, class, id); existing != nil {
		return existing
	}
	n := &node{class: class, id: id, parent: p, refs: map[string]*node{}, alarms: map[alarmKey]block.Severity{}}
	if p != nil {
		p.children = append(p.children, n)
	}
	return n
}

func (s *Sink) FindChild(parent mosink.Instance, class block.Class, id block.Id) mosink.Instance {
	p := asNode(parent)
	if p == nil {
		return nil
	}
	for _, c := range p.children {
		if c.class == class && c.id == id {
			return c
		}
	}
	return nil
}

func (s *Sink) SetData(instance mosink.Instance, data device.BlockData) {
	asNode(instance).data = data
}

func (s *Sink) AlarmRaise(instance mosink.Instance, kind block.Kind, bit int, severity block.Severity) {
	asNode(instance).alarms[alarmKey{kind, bit}] = severity
}

func (s *Sink) AlarmClear(instance mosink.Instance, kind block.Kind, bit int) {
	delete(asNode(instance).alarms, alarmKey{kind, bit})
}

func (s *Sink) AlarmClearInactive(instance mosink.Instance, still map[block.Kind]bool) {
	n := asNode(instance)
	for k := range n.alarms {
		if !still[k.kind] {
			delete(n.alarms, k)
		}
	}
}

func (s *Sink) ThresholdCreate(instance mosink.Instance, name string, kind string, attr map[string]any) {
	// no-op: threshold persistence is out of scope for the engine core
}

func (s *Sink) ForChildren(instance mosink.Instance, fn func(child mosink.Instance)) {
	for _, c := range asNode(instance).children {
		fn(c)
	}
}

func (s *Sink) FollowReference(instance mosink.Instance, name string) mosink.Instance {
	n := asNode(instance)
	if r, ok := n.refs[name]; ok {
		return r
	}
	return nil
}

// Alarms exposes the active alarms on instance, for test assertions.
func (s *Sink) Alarms(instance mosink.Instance) map[block.Kind]block.Severity {
	n := asNode(instance)
	out := make(map[block.Kind]block.Severity, len(n.alarms))
	for k, v := range n.alarms {
		out[k.kind] = v
	}
	return out
}

// Data exposes the stored BlockData on instance, for test assertions.
func (s *Sink) Data(instance mosink.Instance) device.BlockData {
	return asNode(instance).data
}
