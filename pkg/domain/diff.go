package domain

// ForestDiff represents the changes between two versions of a forest.
// It is designed to be serialized to JSON for partial updates on the client.
type ForestDiff struct {
	// Added lists ids present only in the new forest.
	Added []string `json:"added,omitempty"`
	// Removed lists ids present only in the old forest.
	Removed []string `json:"removed,omitempty"`
	// Changed lists ids whose attributes or content differ.
	Changed []string `json:"changed,omitempty"`
	// Moved lists ids whose parent changed, or whose order among surviving
	// siblings changed.
	Moved []string `json:"moved,omitempty"`
}

type placement struct {
	node   *Node
	parent string
	rank   int
}

// Diff calculates the difference between oldForest and newForest, matching nodes by id.
// It returns nil when both forests hold the same nodes in the same places.
func Diff(oldForest, newForest Forest) *ForestDiff {
	before := index(oldForest)
	after := index(newForest)

	diff := &ForestDiff{}

	// 1. Added, Changed, Moved (document order of the new forest)
	newForest.Walk(func(n *Node, _ *Node, _ int) bool {
		was, ok := before[n.ID]
		if !ok {
			diff.Added = append(diff.Added, n.ID)
			return true
		}
		if was.node.Content != n.Content || !was.node.Attributes.Equal(n.Attributes) {
			diff.Changed = append(diff.Changed, n.ID)
		}
		now := after[n.ID]
		if was.parent != now.parent || survivorRank(before, after, was) != survivorRank(after, before, now) {
			diff.Moved = append(diff.Moved, n.ID)
		}
		return true
	})

	// 2. Removed (document order of the old forest)
	oldForest.Walk(func(n *Node, _ *Node, _ int) bool {
		if _, ok := after[n.ID]; !ok {
			diff.Removed = append(diff.Removed, n.ID)
		}
		return true
	})

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *ForestDiff) IsEmpty() bool {
	return len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		len(d.Changed) == 0 &&
		len(d.Moved) == 0
}

func index(f Forest) map[string]placement {
	out := make(map[string]placement)
	var visit func(nodes []*Node, parent string)
	visit = func(nodes []*Node, parent string) {
		for i, n := range nodes {
			out[n.ID] = placement{node: n, parent: parent, rank: i}
			visit(n.Children, n.ID)
		}
	}
	visit(f, RootID)
	return out
}

// survivorRank is the index of p among the siblings that also exist, under the
// same parent, in the other forest. Insertions and removals around a node do not
// shift its rank.
func survivorRank(self, other map[string]placement, p placement) int {
	rank := 0
	for id, q := range self {
		if q.parent != p.parent || q.rank >= p.rank {
			continue
		}
		if o, ok := other[id]; ok && o.parent == p.parent {
			rank++
		}
	}
	return rank
}
