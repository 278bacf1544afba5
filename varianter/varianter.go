// Package varianter reconstructs the parameter tree a runnable's variant
// describes and resolves parameter lookups against it. Only env-only nodes
// survive serialization, so a rebuilt tree is flat: a list of (path,
// environment) nodes plus the path list lookups are restricted to.
package varianter

import (
	"errors"
	"fmt"
	gopath "path"
	"strings"

	"pkt.systems/avorun/schema"
)

// ErrClash indicates a parameter resolved to distinct values in several
// matching nodes.
var ErrClash = errors.New("parameter value clash")

// Node is one rebuilt parameter node.
type Node struct {
	Path        string
	Environment map[string]string
}

func (n Node) isDefault() bool {
	return (n.Path == "" || n.Path == "/") && len(n.Environment) == 0
}

// Parameters is the rebuilt parameter set of one variant. The zero of the
// pointer type is valid: a nil *Parameters resolves every lookup to its
// default.
type Parameters struct {
	Nodes []Node
	Paths []string
}

// Rebuild reconstructs the parameter set from a runnable's variant. It
// returns nil when the variant carries no actual variation: a nil variant, no
// nodes, or only nodes with a default path and an empty environment.
func Rebuild(v *schema.Variant) *Parameters {
	if v == nil {
		return nil
	}
	varied := false
	nodes := make([]Node, 0, len(v.Variant))
	for _, e := range v.Variant {
		n := Node{Path: e.Path, Environment: e.Environment}
		if !n.isDefault() {
			varied = true
		}
		nodes = append(nodes, n)
	}
	if !varied {
		return nil
	}
	return &Parameters{Nodes: nodes, Paths: v.Paths}
}

// Get resolves the parameter key under the given path glob. Lookup considers
// nodes selected by the variant's path list; among those, nodes whose path
// matches the glob contribute their value. No match returns def. Matches that
// disagree return ErrClash.
func (p *Parameters) Get(key, path, def string) (string, error) {
	if p == nil {
		return def, nil
	}
	if path == "" {
		path = "*"
	}
	var value string
	var found bool
	for _, n := range p.Nodes {
		if !p.selected(n.Path) || !matchPath(path, n.Path) {
			continue
		}
		v, ok := n.Environment[key]
		if !ok {
			continue
		}
		if found && v != value {
			return "", fmt.Errorf("parameter %q under %q: %w: %q vs %q", key, path, ErrClash, value, v)
		}
		value, found = v, true
	}
	if !found {
		return def, nil
	}
	return value, nil
}

func (p *Parameters) selected(nodePath string) bool {
	if len(p.Paths) == 0 {
		return true
	}
	for _, sel := range p.Paths {
		if matchPath(sel, nodePath) {
			return true
		}
	}
	return false
}

// matchPath implements tree-style glob matching: a trailing "/*" selects the
// whole subtree, absolute patterns match the full path, relative patterns
// match any tail of it.
func matchPath(pattern, nodePath string) bool {
	if pattern == "*" || pattern == nodePath {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if nodePath == prefix || strings.HasPrefix(nodePath, prefix+"/") {
			return true
		}
	}
	if ok, err := gopath.Match(pattern, nodePath); err == nil && ok {
		return true
	}
	if !strings.HasPrefix(pattern, "/") {
		if ok, err := gopath.Match("*/"+pattern, nodePath); err == nil && ok {
			return true
		}
		if strings.HasSuffix(nodePath, "/"+pattern) {
			return true
		}
	}
	return false
}
