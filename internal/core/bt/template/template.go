// Package template describes trees as plain data so they can be loaded from
// files, persisted in a store and built into runnable bt.Tree values.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/btcore/internal/core/bt"
)

var (
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrTemplateNotFound = errors.New("template not found")
)

// Template is the serialisable form of a tree. Root and Children refer to
// other nodes by ID or, when a node has no ID, by name.
type Template struct {
	Name  string     `json:"name" yaml:"name"`
	Root  string     `json:"root,omitempty" yaml:"root,omitempty"`
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
}

type NodeSpec struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Kind     string         `json:"kind" yaml:"kind"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Children []string       `json:"children,omitempty" yaml:"children,omitempty"`
	Position bt.Position    `json:"position" yaml:"position"`
}

func LoadYAML(r io.Reader) (*Template, error) {
	var t Template
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode yaml template: %w", err)
	}
	return &t, nil
}

func LoadJSON(r io.Reader) (*Template, error) {
	var t Template
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode json template: %w", err)
	}
	return &t, nil
}

// LoadFile picks the decoder from the file extension. A template without a
// name takes the file's base name.
func LoadFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var t *Template
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		t, err = LoadYAML(f)
	case ".json":
		t, err = LoadJSON(f)
	default:
		return nil, fmt.Errorf("%w: unsupported file extension %q", ErrInvalidTemplate, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// Validate checks the graph without resolving kinds: every node has a kind,
// IDs are valid and unique, references resolve, no node has two parents and
// the edges form no cycle.
func (t *Template) Validate() error {
	_, err := t.resolve()
	return err
}

// graph is a validated template with references turned into node indexes.
type graph struct {
	ids      []uuid.UUID
	children [][]int
	root     int
}

func (t *Template) resolve() (*graph, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidTemplate, fmt.Sprintf(format, args...))
	}
	if t.Name == "" {
		return nil, invalid("name is required")
	}

	g := &graph{
		ids:      make([]uuid.UUID, len(t.Nodes)),
		children: make([][]int, len(t.Nodes)),
		root:     -1,
	}
	refs := make(map[string]int, len(t.Nodes)*2)
	for i, spec := range t.Nodes {
		if spec.Kind == "" {
			return nil, invalid("node %d has no kind", i)
		}
		if spec.ID != "" {
			id, err := uuid.Parse(spec.ID)
			if err != nil {
				return nil, invalid("node %d: bad id %q", i, spec.ID)
			}
			if _, dup := refs[id.String()]; dup {
				return nil, invalid("duplicate node id %s", id)
			}
			g.ids[i] = id
			refs[id.String()] = i
		}
		if spec.Name != "" {
			if _, dup := refs[spec.Name]; dup {
				return nil, invalid("duplicate node name %q", spec.Name)
			}
			refs[spec.Name] = i
		}
	}
	lookup := func(ref string) (int, bool) {
		if i, ok := refs[ref]; ok {
			return i, true
		}
		// IDs may be written in any case.
		if id, err := uuid.Parse(ref); err == nil {
			i, ok := refs[id.String()]
			return i, ok
		}
		return 0, false
	}

	parent := make([]int, len(t.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, spec := range t.Nodes {
		for _, ref := range spec.Children {
			c, ok := lookup(ref)
			if !ok {
				return nil, invalid("node %d: unknown child %q", i, ref)
			}
			if parent[c] != -1 {
				return nil, invalid("node %q has more than one parent", ref)
			}
			parent[c] = i
			g.children[i] = append(g.children[i], c)
		}
	}
	for i := range t.Nodes {
		steps := 0
		for p := parent[i]; p != -1; p = parent[p] {
			if p == i || steps > len(t.Nodes) {
				return nil, invalid("cycle through node %d", i)
			}
			steps++
		}
	}

	if t.Root != "" {
		r, ok := lookup(t.Root)
		if !ok {
			return nil, invalid("unknown root %q", t.Root)
		}
		g.root = r
	}
	return g, nil
}

// Build creates a fresh tree from the template. Nodes without an ID get a new
// one, so build once and Clone the result when stable IDs matter.
func (t *Template) Build(reg *bt.Registry, opts ...bt.Option) (*bt.Tree, error) {
	g, err := t.resolve()
	if err != nil {
		return nil, err
	}

	tree := bt.NewTree(append([]bt.Option{bt.WithTreeName(t.Name)}, opts...)...)
	nodes := make([]*bt.Node, len(t.Nodes))
	for i, spec := range t.Nodes {
		kind, err := reg.Kind(spec.Kind, spec.Params)
		if err != nil {
			return nil, fmt.Errorf("template %s: node %d: %w", t.Name, i, err)
		}
		nodeOpts := []bt.NodeOption{bt.WithPosition(spec.Position)}
		if g.ids[i] != uuid.Nil {
			nodeOpts = append(nodeOpts, bt.WithNodeID(g.ids[i]))
		}
		if spec.Name != "" {
			nodeOpts = append(nodeOpts, bt.WithName(spec.Name))
		}
		if nodes[i], err = tree.CreateNode(kind, nodeOpts...); err != nil {
			return nil, fmt.Errorf("template %s: node %d: %w", t.Name, i, err)
		}
	}
	for i, children := range g.children {
		for _, c := range children {
			if err = tree.AddChild(nodes[i], nodes[c]); err != nil {
				return nil, fmt.Errorf("template %s: %w", t.Name, err)
			}
		}
	}
	if g.root >= 0 {
		if err = tree.SetRoot(nodes[g.root]); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	return tree, nil
}

// FromTree snapshots a tree's structure. Every node is written with its ID and
// children are referenced by ID.
func FromTree(tree *bt.Tree) *Template {
	t := &Template{Name: tree.Name()}
	if root := tree.Root(); root != nil {
		t.Root = root.ID().String()
	}
	for _, n := range tree.Nodes() {
		spec := NodeSpec{
			ID:       n.ID().String(),
			Name:     n.Name(),
			Kind:     n.KindName(),
			Position: n.Position(),
		}
		if n.Kind() != nil {
			spec.Params = n.Kind().Params()
		}
		for _, c := range n.Children() {
			spec.Children = append(spec.Children, c.String())
		}
		t.Nodes = append(t.Nodes, spec)
	}
	return t
}
