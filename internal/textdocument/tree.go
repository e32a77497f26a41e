package textdocument

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Nodes visits every node of the document's parse tree in pre-order and
// calls visit for each. Returning false stops the traversal.
func (d *Document) Nodes(visit func(node *tree_sitter.Node) bool) {
	walkNodes(d.tree.RootNode(), visit)
}

func walkNodes(node *tree_sitter.Node, visit func(node *tree_sitter.Node) bool) bool {
	if !visit(node) {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if !walkNodes(node.Child(i), visit) {
			return false
		}
	}
	return true
}

// CollectNodes returns the ranges and kinds of all nodes matching the
// filter, in pre-order. Node handles are not retained past the traversal;
// mutators work on ranges so the tree can be refreshed safely afterwards.
func (d *Document) CollectNodes(filter func(node *tree_sitter.Node) bool) []NodeInfo {
	var out []NodeInfo
	d.Nodes(func(node *tree_sitter.Node) bool {
		if filter == nil || filter(node) {
			out = append(out, NodeInfo{
				Kind:      node.Kind(),
				KindID:    node.KindId(),
				Range:     node.Range(),
				Terminal:  node.ChildCount() == 0,
				IsError:   node.IsError(),
				IsMissing: node.IsMissing(),
			})
		}
		return true
	})
	return out
}

// NodeInfo is the mutator-facing snapshot of a parse-tree node.
type NodeInfo struct {
	Kind      string
	KindID    uint16
	Range     tree_sitter.Range
	Terminal  bool
	IsError   bool
	IsMissing bool
}

// Text returns the bytes covered by the node range.
func (d *Document) Text(r tree_sitter.Range) []byte {
	return d.content[r.StartByte:r.EndByte]
}

// TerminalRanges returns the ranges of all leaf nodes.
func (d *Document) TerminalRanges() []tree_sitter.Range {
	var out []tree_sitter.Range
	d.Nodes(func(node *tree_sitter.Node) bool {
		if node.ChildCount() == 0 {
			out = append(out, node.Range())
		}
		return true
	})
	return out
}

// CapturedRanges returns the ranges of nodes captured under the given
// highlight-group name (e.g. "comment"). Unknown groups yield nil.
func (d *Document) CapturedRanges(group string) []tree_sitter.Range {
	query := d.language.HighlightQuery()
	if query == nil {
		return nil
	}
	captureIndex := -1
	for i, name := range query.CaptureNames() {
		if name == group {
			captureIndex = i
			break
		}
	}
	if captureIndex < 0 {
		return nil
	}
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()
	var out []tree_sitter.Range
	matches := cursor.Matches(query, d.tree.RootNode(), d.content)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			if int(capture.Index) == captureIndex {
				out = append(out, capture.Node.Range())
			}
		}
	}
	return out
}

// SmallestNodeAt returns the deepest node containing the point range, or
// false when the point lies outside the tree.
func (d *Document) SmallestNodeAt(start, end tree_sitter.Point) (NodeInfo, bool) {
	node := d.tree.RootNode().DescendantForPointRange(start, end)
	if node == nil {
		return NodeInfo{}, false
	}
	return NodeInfo{
		Kind:      node.Kind(),
		KindID:    node.KindId(),
		Range:     node.Range(),
		Terminal:  node.ChildCount() == 0,
		IsError:   node.IsError(),
		IsMissing: node.IsMissing(),
	}, true
}

// PathHashAt hashes the grammar-id path from the smallest node containing
// the point range up to the root, using the supplied hash function over
// the sequence of kind ids. Used by the operation-context feedback.
func (d *Document) PathHashAt(start, end tree_sitter.Point, hash func(kindIDs []uint16) uint64) (uint64, bool) {
	node := d.tree.RootNode().DescendantForPointRange(start, end)
	if node == nil {
		return 0, false
	}
	var ids []uint16
	for n := node; n != nil; n = n.Parent() {
		ids = append(ids, n.KindId())
	}
	return hash(ids), true
}
