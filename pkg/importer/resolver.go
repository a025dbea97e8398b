package importer

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Resolver links flat ImportRecords into a validated tree. Parent references
// are string external ids (forward references are legal), so resolution is
// two-pass: pass one indexes every record by external id, pass two wires each
// record to its parent through the index.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a hierarchy resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("hierarchy-resolver")}
}

// Resolve wires parent references and returns the resolved nodes plus all
// hierarchy errors found. A record whose parent is absent from the batch is
// reported and kept as an orphan root, never dropped. A parent chain that
// revisits itself is broken at the point of detection and reported exactly
// once per cycle. Output order is deterministic: depth-first from roots, with
// siblings ordered by SortOrder ascending and ties broken by ExternalID.
func (r *Resolver) Resolve(records []*ImportRecord) ([]*ResolvedNode, []*Error) {
	var errs []*Error

	// Pass 1: index records by external id. Duplicate ids within one batch are
	// a validation problem for the matcher; the resolver keeps the first.
	index := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.ExternalID == "" {
			continue
		}
		if _, dup := index[rec.ExternalID]; !dup {
			index[rec.ExternalID] = i
		}
	}

	// Pass 2: wire each record to its parent's index.
	parentIdx := make([]int, len(records))
	for i, rec := range records {
		parentIdx[i] = -1
		if !rec.HasParent() {
			continue
		}
		pi, ok := index[rec.ParentExternalID]
		if !ok {
			errs = append(errs, hierarchyError(rec.ExternalID,
				fmt.Sprintf("parent %q not found in batch, keeping as orphan root", rec.ParentExternalID)))
			continue
		}
		parentIdx[i] = pi
	}

	errs = append(errs, r.breakCycles(records, parentIdx)...)

	nodes := make([]*ResolvedNode, len(records))
	for i, rec := range records {
		nodes[i] = &ResolvedNode{Record: rec}
	}
	for i, pi := range parentIdx {
		if pi >= 0 {
			nodes[i].Parent = nodes[pi]
		}
	}
	for _, node := range nodes {
		for p := node.Parent; p != nil; p = p.Parent {
			node.Depth++
		}
	}

	return orderNodes(nodes), errs
}

// breakCycles walks every parent chain with a three-color marking and breaks
// each cycle at the record where it is first detected, so resolution always
// terminates and each cycle is reported once.
func (r *Resolver) breakCycles(records []*ImportRecord, parentIdx []int) []*Error {
	const (
		unvisited = 0
		onPath    = 1
		done      = 2
	)
	var errs []*Error
	state := make([]int, len(records))

	for i := range records {
		if state[i] != unvisited {
			continue
		}
		var path []int
		j := i
		for j >= 0 && state[j] == unvisited {
			state[j] = onPath
			path = append(path, j)
			j = parentIdx[j]
		}
		if j >= 0 && state[j] == onPath {
			// The chain re-entered itself: j is part of a cycle. Break the
			// link at j and keep it as a root.
			errs = append(errs, hierarchyError(records[j].ExternalID,
				fmt.Sprintf("cycle detected via parent %q, breaking link", records[j].ParentExternalID)))
			r.logger.Warn("Hierarchy cycle broken",
				zap.String("external_id", records[j].ExternalID),
				zap.String("parent_external_id", records[j].ParentExternalID))
			parentIdx[j] = -1
		}
		for _, k := range path {
			state[k] = done
		}
	}
	return errs
}

// orderNodes returns nodes depth-first from roots with deterministic sibling
// ordering, so repeated imports of the same input produce identical output.
func orderNodes(nodes []*ResolvedNode) []*ResolvedNode {
	children := make(map[*ResolvedNode][]*ResolvedNode)
	var roots []*ResolvedNode
	for _, node := range nodes {
		if node.Parent == nil {
			roots = append(roots, node)
		} else {
			children[node.Parent] = append(children[node.Parent], node)
		}
	}

	byOrder := func(group []*ResolvedNode) {
		sort.Slice(group, func(a, b int) bool {
			if group[a].Record.SortOrder != group[b].Record.SortOrder {
				return group[a].Record.SortOrder < group[b].Record.SortOrder
			}
			return group[a].Record.ExternalID < group[b].Record.ExternalID
		})
	}
	byOrder(roots)
	for _, group := range children {
		byOrder(group)
	}

	ordered := make([]*ResolvedNode, 0, len(nodes))
	var walk func(node *ResolvedNode)
	walk = func(node *ResolvedNode) {
		ordered = append(ordered, node)
		for _, child := range children[node] {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return ordered
}
