// Package logsink is the default mosink.Sink used by cmd/eemclient: it
// keeps just enough tree state to resolve Create/FindChild and logs every
// alarm transition, standing in for the managed-object tree and alarm
// database, both of which live outside this repository.
package logsink

import (
	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/mosink"
	"github.com/sirupsen/logrus"
)

type node struct {
	class    block.Class
	id       block.Id
	parent   *node
	children []*node
	alarms   map[alarmKey]block.Severity
}

type alarmKey struct {
	kind block.Kind
	bit  int
}

// Sink logs equipment/alarm events through a *logrus.Entry rather than
// persisting them anywhere.
type Sink struct {
	log  *logrus.Entry
	root *node
}

// New returns a Sink rooted at a single PowerSystem node.
func New(log *logrus.Entry) *Sink {
	return &Sink{log: log, root: &node{class: block.ClassSystem, alarms: map[alarmKey]block.Severity{}}}
}

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
	n := &node{class: class, id: id, parent: p, alarms: map[alarmKey]block.Severity{}}
	if p != nil {
		p.children = append(p.children, n)
	}
	s.log.WithFields(logrus.Fields{"class": class.String(), "id": string(id)}).Info("equipment discovered")
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
	// raw vectors are not persisted; per-class readers already normalize
	// them onto the Device before this sink ever sees an instance.
}

func (s *Sink) AlarmRaise(instance mosink.Instance, kind block.Kind, bit int, severity block.Severity) {
	n := asNode(instance)
	if n == nil {
		return
	}
	if _, already := n.alarms[alarmKey{kind, bit}]; !already {
		s.log.WithFields(logrus.Fields{"id": string(n.id), "kind": kind, "bit": bit}).Warn("alarm raised")
	}
	n.alarms[alarmKey{kind, bit}] = severity
}

func (s *Sink) AlarmClear(instance mosink.Instance, kind block.Kind, bit int) {
	n := asNode(instance)
	if n == nil {
		return
	}
	delete(n.alarms, alarmKey{kind, bit})
	s.log.WithFields(logrus.Fields{"id": string(n.id), "kind": kind, "bit": bit}).Info("alarm cleared")
}

func (s *Sink) AlarmClearInactive(instance mosink.Instance, still map[block.Kind]bool) {
	n := asNode(instance)
	if n == nil {
		return
	}
	for k := range n.alarms {
		if !still[k.kind] {
			s.AlarmClear(instance, k.kind, k.bit)
		}
	}
}

func (s *Sink) ThresholdCreate(instance mosink.Instance, name string, kind string, attr map[string]any) {
	// threshold persistence lives outside this repository; accepted and dropped.
}

func (s *Sink) ForChildren(instance mosink.Instance, fn func(child mosink.Instance)) {
	n := asNode(instance)
	if n == nil {
		return
	}
	for _, c := range n.children {
		fn(c)
	}
}

func (s *Sink) FollowReference(instance mosink.Instance, name string) mosink.Instance {
	return nil
}
