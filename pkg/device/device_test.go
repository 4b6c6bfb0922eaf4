package device

import (
	"testing"

	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/stretchr/testify/assert"
)

func TestEnsureCreatesOnce(t *testing.T) {
	l := NewList()
	d1, created1 := l.Ensure(block.Id("0201"), false)
	assert.True(t, created1)
	d2, created2 := l.Ensure(block.Id("0201"), false)
	assert.False(t, created2)
	assert.Same(t, d1, d2)
}

func TestDiscoveryOrderingInvariant(t *testing.T) {
	l := NewList()
	l.Ensure(block.Id("0201"), false)
	l.Ensure(block.Id("0202"), false)
	l.Ensure(block.Id("0200"), true) // rectifier group discovered after its units

	all := l.All()
	groupIdx, rect1Idx := -1, -1
	for i, d := range all {
		if d.ID == block.Id("0200") {
			groupIdx = i
		}
		if d.ID == block.Id("0201") {
			rect1Idx = i
		}
	}
	assert.True(t, groupIdx < rect1Idx, "rectifier group must precede individual rectifiers")
}

func TestClearDataKeepsDevices(t *testing.T) {
	l := NewList()
	d, _ := l.Ensure(block.Id("0300"), false)
	d.Data.AI = []float32{1, 2, 3}
	l.ClearData()
	assert.Equal(t, 1, l.Len())
	assert.Nil(t, l.Find(block.Id("0300")).Data.AI)
}
