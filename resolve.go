package flatland

import (
	"sort"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// ResolveScope flattens the records produced by run-flow into one global
// graph. Flow records are processed in the given order (parents before their
// children): the flow's sources are rewired to its entry nodes, its exit nodes
// to its targets, its nodes move to the flow's own scope, and the flow record
// is dropped. The input is not modified.
func ResolveScope(recs []*graph.NodeInfo) (graph.Graph, error) {
	g := make(graph.Graph, len(recs))
	var flows []*graph.NodeInfo
	for _, r := range recs {
		c := r.Clone()
		if _, dup := g[c.ID]; dup {
			return nil, newError(ConsistencyError, "duplicate record id %s", c.ID)
		}
		g[c.ID] = c
		if c.Type == graph.TypeFlow {
			flows = append(flows, c)
		}
	}

	for _, sf := range flows {
		if err := dissolve(g, sf); err != nil {
			return nil, err
		}
	}

	for id, r := range g {
		if r.Scope != graph.GlobalScope {
			return nil, newError(ConsistencyError, "record %s left in scope %s after resolution", id, r.Scope)
		}
		r.Scope = ""
		r.Name = ""
		r.Sources = nil
	}
	return g, nil
}

func dissolve(g graph.Graph, sf *graph.NodeInfo) error {
	if sf.Internal == nil {
		return newError(ConsistencyError, "flow record %s has no router", sf.ID)
	}
	lookup := func(id string) (*graph.NodeInfo, error) {
		r, ok := g[id]
		if !ok {
			return nil, newError(ConsistencyError, "flow %s refers to unknown record %s", sf.ID, id)
		}
		return r, nil
	}

	// sources -> entries
	entries := sf.Internal.Entries
	for _, srcID := range sf.Sources {
		src, err := lookup(srcID)
		if err != nil {
			return err
		}
		port := src.EdgeType(sf.ID)
		if port == "" {
			return newError(ConsistencyError, "record %s lists %s as source but has no edge to it", sf.ID, srcID)
		}
		src.Targets[port] = append(remove(src.Targets[port], sf.ID), entries...)
	}
	for _, dstID := range entries {
		dst, err := lookup(dstID)
		if err != nil {
			return err
		}
		dst.Sources = append(remove(dst.Sources, sf.ID), sf.Sources...)
	}

	// exits -> targets
	for _, k := range sortedKeys(sf.Internal.Exits) {
		for _, srcID := range sf.Internal.Exits[k] {
			src, err := lookup(srcID)
			if err != nil {
				return err
			}
			port := src.EdgeType(sf.ID)
			if port == "" {
				return newError(ConsistencyError, "exit %s of flow %s has no edge to its router", srcID, sf.ID)
			}
			src.Targets[port] = remove(src.Targets[port], sf.ID)
			for _, dstID := range sf.Targets[k] {
				dst, err := lookup(dstID)
				if err != nil {
					return err
				}
				dst.Sources = append(remove(dst.Sources, sf.ID), srcID)
				src.Targets[port] = append(src.Targets[port], dstID)
			}
		}
	}

	for _, r := range g {
		if r.Scope == sf.ID {
			r.Scope = sf.Scope
		}
	}
	delete(g, sf.ID)
	return nil
}

// remove drops every occurrence of id
func remove(ids []string, id string) []string {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
