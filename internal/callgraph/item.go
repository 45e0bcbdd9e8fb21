// Package callgraph builds a directed call graph out of call items and
// edges discovered via LSP call-hierarchy queries, and computes
// root-to-node path sets and depth-inconsistent nodes over it.
package callgraph

import (
	"encoding/json"

	"codedepth/internal/lsptypes"
)

// Item is a location-addressed reference to a function or method
// definition. It is immutable once constructed.
type Item struct {
	Name           string
	Kind           lsptypes.SymbolKind
	Tags           []int
	Detail         string
	File           string
	Range          lsptypes.Range
	SelectionRange lsptypes.Range
	Data           json.RawMessage
}

// FromLSP converts a raw call-hierarchy item into an Item.
func FromLSP(raw lsptypes.CallHierarchyItem) Item {
	return Item{
		Name:           raw.Name,
		Kind:           raw.Kind,
		Tags:           raw.Tags,
		Detail:         raw.Detail,
		File:           raw.URI,
		Range:          raw.Range,
		SelectionRange: raw.SelectionRange,
		Data:           raw.Data,
	}
}

// ToLSP converts an Item back to the wire shape used to issue further
// call-hierarchy queries about it.
func (it Item) ToLSP() lsptypes.CallHierarchyItem {
	return lsptypes.CallHierarchyItem{
		Name:           it.Name,
		Kind:           it.Kind,
		Tags:           it.Tags,
		Detail:         it.Detail,
		URI:            it.File,
		Range:          it.Range,
		SelectionRange: it.SelectionRange,
		Data:           it.Data,
	}
}

// Key is the comparable identity of an Item: two items are the same
// graph node iff their Keys are equal. It deliberately excludes
// volatile, server-specific fields like Tags/Detail/Data.
type Key struct {
	File         string
	SelStartLine int
	SelStartChar int
	SelEndLine   int
	SelEndChar   int
	Name         string
}

// Key computes the identity tuple for it.
func (it Item) Key() Key {
	return Key{
		File:         it.File,
		SelStartLine: it.SelectionRange.Start.Line,
		SelStartChar: it.SelectionRange.Start.Character,
		SelEndLine:   it.SelectionRange.End.Line,
		SelEndChar:   it.SelectionRange.End.Character,
		Name:         it.Name,
	}
}

// Edge is an ordered (caller, callee) pair meaning "caller invokes
// callee at least once". Raw edge lists may contain duplicates; graph
// construction deduplicates them.
type Edge struct {
	Caller Item
	Callee Item
}
