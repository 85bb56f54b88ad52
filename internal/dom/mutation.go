package dom

import "context"

// MutationKind mirrors MutationRecord.type.
type MutationKind string

const (
	ChildList     MutationKind = "childList"
	Attributes    MutationKind = "attributes"
	CharacterData MutationKind = "characterData"
)

// ObservedAttributes restricts attribute mutations to the ones that change how
// a pitch element renders.
var ObservedAttributes = []string{"class", "style"}

// Node is the part of a mutated node the watcher needs to judge relevance.
type Node interface {
	// IsOrContains reports whether the node, or one of its descendants, carries
	// a class containing substr.
	IsOrContains(substr string) bool
	// Within reports whether an ancestor carries a class containing substr.
	Within(substr string) bool
}

// Mutation is one MutationRecord.
type Mutation struct {
	Kind      MutationKind
	Target    Node
	Attribute string
	Added     []Node
	Removed   []Node
}

// TouchesPitch reports whether the record concerns a pitch element.
func (m Mutation) TouchesPitch() bool {
	if m.Target != nil && (m.Target.IsOrContains(PitchElementClass) || m.Target.Within(PitchElementClass)) {
		return true
	}
	for _, n := range m.Added {
		if n != nil && n.IsOrContains(PitchElementClass) {
			return true
		}
	}
	for _, n := range m.Removed {
		if n != nil && n.IsOrContains(PitchElementClass) {
			return true
		}
	}
	return false
}

// Observer installs a single subtree observer on the document body and
// delivers mutation batches until ctx ends. The channel is closed on return.
type Observer interface {
	Observe(ctx context.Context) (<-chan []Mutation, error)
}
