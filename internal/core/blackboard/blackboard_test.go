package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlackboard(t *testing.T) {
	bb := New(map[string]any{"hp": 10})

	v, ok := bb.Get("hp")
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	bb.Set("alert", true)
	alert, ok := Bool(bb, "alert")
	assert.True(t, ok)
	assert.True(t, alert)

	hp, ok := Float(bb, "hp")
	assert.True(t, ok)
	assert.Equal(t, 10.0, hp)

	_, ok = Float(bb, "alert")
	assert.False(t, ok)

	bb.Delete("hp")
	_, ok = bb.Get("hp")
	assert.False(t, ok)
	assert.Equal(t, []string{"alert"}, bb.Keys())
}

func TestBlackboardNamespace(t *testing.T) {
	bb := New(nil)
	combat := bb.Namespace("combat")
	combat.Set("target", "orc")
	bb.Set("target", "none")

	v, _ := combat.Get("target")
	assert.Equal(t, "orc", v)
	v, _ = bb.Get("combat:target")
	assert.Equal(t, "orc", v)

	assert.Equal(t, []string{"target"}, combat.Keys())
	assert.Equal(t, []string{"combat:target", "target"}, bb.Keys())
	assert.Equal(t, map[string]any{"target": "orc"}, combat.Snapshot())

	odd := bb.Namespace("a:b")
	odd.Set("k", 1)
	_, ok := bb.Get("a_b:k")
	assert.True(t, ok)
}
