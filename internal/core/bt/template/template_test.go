package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/btcore/internal/core/bt"
	"github.com/zeusync/btcore/internal/core/bt/nodes"
)

const patrolYAML = `
name: patrol
root: start
nodes:
  - name: start
    kind: fork
    children: [left, right]
  - name: left
    kind: wait
    params: {seconds: 2}
    position: {x: 10, y: 20}
  - id: 6f1c2f0e-7d61-4d0c-9a43-3c1f0b0f5a11
    name: right
    kind: log
    params: {message: hello}
`

func registry() *bt.Registry {
	reg := bt.NewRegistry()
	nodes.RegisterBuiltins(reg)
	return reg
}

func TestLoadYAMLAndBuild(t *testing.T) {
	tmpl, err := LoadYAML(strings.NewReader(patrolYAML))
	require.NoError(t, err)
	require.NoError(t, tmpl.Validate())

	tree, err := tmpl.Build(registry())
	require.NoError(t, err)
	assert.Equal(t, "patrol", tree.Name())
	require.Equal(t, 3, tree.Len())

	all := tree.Nodes()
	start, left, right := all[0], all[1], all[2]
	assert.Same(t, start, tree.Root())
	assert.Equal(t, []*bt.Node{left, right}, tree.Children(start))
	assert.Equal(t, bt.Position{X: 10, Y: 20}, left.Position())
	assert.Equal(t, "wait", left.KindName())
	assert.Equal(t, uuid.MustParse("6f1c2f0e-7d61-4d0c-9a43-3c1f0b0f5a11"), right.ID())

	require.NoError(t, tree.Evaluate(nil, 1))
	require.NoError(t, tree.Evaluate(nil, 1))
	assert.Equal(t, []*bt.Node{left, right}, tree.ActiveNodes())
}

func TestLoadJSON(t *testing.T) {
	tmpl, err := LoadJSON(strings.NewReader(`{"name":"one","nodes":[{"kind":"wait","params":{"seconds":1}}]}`))
	require.NoError(t, err)
	tree, err := tmpl.Build(registry())
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
	assert.Nil(t, tree.Root(), "root resolves lazily")

	_, err = LoadJSON(strings.NewReader(`{"name":"x","extra":1}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.yml")
	body := strings.Replace(patrolYAML, "name: patrol\n", "", 1)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	tmpl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "guard", tmpl.Name)

	txt := filepath.Join(dir, "guard.txt")
	require.NoError(t, os.WriteFile(txt, []byte(body), 0o600))
	_, err = LoadFile(txt)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestValidateRejectsBadGraphs(t *testing.T) {
	cases := map[string]Template{
		"no name":      {Nodes: []NodeSpec{{Kind: "fork"}}},
		"no kind":      {Name: "x", Nodes: []NodeSpec{{Name: "a"}}},
		"bad id":       {Name: "x", Nodes: []NodeSpec{{ID: "nope", Kind: "fork"}}},
		"unknown ref":  {Name: "x", Nodes: []NodeSpec{{Name: "a", Kind: "fork", Children: []string{"b"}}}},
		"unknown root": {Name: "x", Root: "b", Nodes: []NodeSpec{{Name: "a", Kind: "fork"}}},
		"duplicate name": {Name: "x", Nodes: []NodeSpec{
			{Name: "a", Kind: "fork"}, {Name: "a", Kind: "fork"},
		}},
		"two parents": {Name: "x", Nodes: []NodeSpec{
			{Name: "a", Kind: "fork", Children: []string{"c"}},
			{Name: "b", Kind: "fork", Children: []string{"c"}},
			{Name: "c", Kind: "fork"},
		}},
		"cycle": {Name: "x", Nodes: []NodeSpec{
			{Name: "a", Kind: "fork", Children: []string{"b"}},
			{Name: "b", Kind: "fork", Children: []string{"a"}},
		}},
		"self loop": {Name: "x", Nodes: []NodeSpec{
			{Name: "a", Kind: "fork", Children: []string{"a"}},
		}},
	}
	for name, tmpl := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, tmpl.Validate(), ErrInvalidTemplate)
		})
	}
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	tmpl := &Template{Name: "x", Nodes: []NodeSpec{{Kind: "teleport"}}}
	_, err := tmpl.Build(registry())
	assert.ErrorIs(t, err, bt.ErrUnknownKind)

	tmpl = &Template{Name: "x", Nodes: []NodeSpec{{Kind: "wait", Params: map[string]any{"seconds": -1}}}}
	_, err = tmpl.Build(registry())
	assert.ErrorIs(t, err, nodes.ErrBadParams)
}

func TestFromTreeRoundTrip(t *testing.T) {
	tmpl, err := LoadYAML(strings.NewReader(patrolYAML))
	require.NoError(t, err)
	tree, err := tmpl.Build(registry())
	require.NoError(t, err)

	snap := FromTree(tree)
	assert.Equal(t, "patrol", snap.Name)
	assert.Equal(t, tree.Root().ID().String(), snap.Root)
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, map[string]any{"seconds": 2}, snap.Nodes[1].Params)

	rebuilt, err := snap.Build(registry())
	require.NoError(t, err)
	for _, n := range tree.Nodes() {
		cp, ok := rebuilt.Node(n.ID())
		require.True(t, ok, n.Name())
		assert.Equal(t, n.Name(), cp.Name())
		assert.Equal(t, n.Children(), cp.Children())
		assert.Equal(t, n.Position(), cp.Position())
	}
	assert.Equal(t, tree.Root().ID(), rebuilt.Root().ID())
}
