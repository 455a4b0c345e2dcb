package topology

import (
	"fmt"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(peerID, host string) *Node {
	return &Node{PeerID: peerID, Host: host, Status: StatusPending}
}

func newOK(peerID, host string) *Node {
	return &Node{PeerID: peerID, Host: host, Status: StatusOK}
}

func TestNewTree(t *testing.T) {
	tr := NewTree("vol-A")
	require.NotNil(t, tr.Root)
	assert.True(t, tr.Root.FakeRoot)
	assert.Equal(t, StatusOK, tr.Root.Status)
	assert.Equal(t, 0, tr.Root.Level)
	assert.Same(t, tr.Root, tr.Nodes[tr.Root.PeerID])
	assert.Equal(t, 1, tr.Count())
}

func TestInsertFillsLeftBeforeRight(t *testing.T) {
	tr := NewTree("vol-A")

	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))
	assert.Same(t, tr.Root, a.Parent)
	assert.Same(t, a, tr.Root.Left)

	b := newOK("b", "b")
	require.NoError(t, tr.Insert(b))
	assert.Same(t, tr.Root, b.Parent)
	assert.Same(t, b, tr.Root.Right)

	c := newOK("c", "c")
	require.NoError(t, tr.Insert(c))
	assert.Same(t, a, c.Parent, "third insert should slot under the leftmost available node")
	assert.Same(t, c, a.Left)

	d := newOK("d", "d")
	require.NoError(t, tr.Insert(d))
	assert.Same(t, a, d.Parent)
	assert.Same(t, d, a.Right)

	e := newOK("e", "e")
	require.NoError(t, tr.Insert(e))
	assert.Same(t, b, e.Parent, "fifth insert should fill the next level-available node left-to-right")
}

func TestInsertRejectsDuplicateAndParented(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))

	err := tr.Insert(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	b := newOK("b", "b")
	b.Parent = tr.Root
	err = tr.Insert(b)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	assert.ErrorIs(t, tr.Insert(nil), ErrInvalidParameter)
}

func TestLevelsTrackDepth(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))
	b := newOK("b", "b")
	require.NoError(t, tr.Insert(b))
	c := newOK("c", "c")
	require.NoError(t, tr.Insert(c))

	assert.Equal(t, 1, a.Level)
	assert.Equal(t, 1, b.Level)
	assert.Equal(t, 2, c.Level)
}

func TestGetParentsBTree(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("10.0.0.1:vol-A", "10.0.0.1")
	require.NoError(t, tr.Insert(a))
	b := newOK("10.0.0.2:vol-A", "10.0.0.2")
	require.NoError(t, tr.Insert(b))

	assert.Nil(t, tr.GetParents(a), "parent is the synthetic root")
	assert.Nil(t, tr.GetParents(b))

	c := newOK("10.0.0.3:vol-A", "10.0.0.3")
	require.NoError(t, tr.Insert(c))
	parents := tr.GetParents(c)
	require.Len(t, parents, 2)
	assert.Equal(t, a.PeerID, parents[0].PeerID, "direct parent is first")
	assert.Equal(t, b.PeerID, parents[1].PeerID, "same-level peer is second")
}

func TestGetParentAndUncle(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))
	b := newOK("b", "b")
	require.NoError(t, tr.Insert(b))
	c := newOK("c", "c")
	require.NoError(t, tr.Insert(c))

	parents := tr.GetParentAndUncle(c)
	require.Len(t, parents, 2)
	assert.Equal(t, a.PeerID, parents[0].PeerID)
	assert.Equal(t, b.PeerID, parents[1].PeerID, "c's uncle is a's sibling b")

	_, err := tr.Remove(b)
	require.NoError(t, err)
	parents = tr.GetParentAndUncle(c)
	require.Len(t, parents, 1, "a is now an only child, so c has no uncle")
	assert.Equal(t, a.PeerID, parents[0].PeerID)
}

func TestRemoveLeaf(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))
	b := newOK("b", "b")
	require.NoError(t, tr.Insert(b))

	removed, err := tr.Remove(b)
	require.NoError(t, err)
	assert.Same(t, b, removed)
	assert.Nil(t, tr.Root.Right)
	assert.Equal(t, 2, tr.Count())
}

func TestRemoveReparentsSingleChild(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))
	b := newOK("b", "b")
	require.NoError(t, tr.Insert(b))
	c := newOK("c", "c") // attaches under a (leftmost available)
	require.NoError(t, tr.Insert(c))

	_, err := tr.Remove(a)
	require.NoError(t, err)
	assert.Same(t, tr.Root, c.Parent)
	assert.Same(t, c, tr.Root.Left)
	assert.Equal(t, 1, c.Level)
}

func TestRemoveTwoChildrenSplicesViaLeftSpine(t *testing.T) {
	tr := NewTree("vol-A")
	a := newOK("a", "a")
	require.NoError(t, tr.Insert(a))
	b := newOK("b", "b")
	require.NoError(t, tr.Insert(b))
	c := newOK("c", "c") // a.Left
	require.NoError(t, tr.Insert(c))
	d := newOK("d", "d") // a.Right
	require.NoError(t, tr.Insert(d))

	_, err := tr.Remove(a)
	require.NoError(t, err)
	assert.Same(t, c, tr.Root.Left, "c (a.Left) takes a's slot")
	assert.Same(t, d, c.Left, "d (a.Right) is reattached under c, the first available node on its left spine")
	assert.Equal(t, 1, c.Level)
	assert.Equal(t, 2, d.Level)
}

func TestRemoveTwoChildrenSkipsPendingLeafOnLeftSpine(t *testing.T) {
	tr := NewTree("vol-A")

	target := newOK("target", "target")
	target.Parent = tr.Root
	tr.Root.Left = target
	tr.Nodes[target.PeerID] = target

	left := newOK("left", "left")
	left.Parent = target
	target.Left = left
	tr.Nodes[left.PeerID] = left

	right := newOK("right", "right")
	right.Parent = target
	target.Right = right
	tr.Nodes[right.PeerID] = right

	// left's own left child is a pending leaf: a pure leftward walk from
	// left would stop there and, before this fix, would have attached
	// right as that pending leaf's child.
	leftPending := newPending("left-pending", "left-pending")
	leftPending.Parent = left
	left.Left = leftPending
	tr.Nodes[leftPending.PeerID] = leftPending

	leftAvailable := newOK("left-available", "left-available")
	leftAvailable.Parent = left
	left.Right = leftAvailable
	tr.Nodes[leftAvailable.PeerID] = leftAvailable

	removed, err := tr.Remove(target)
	require.NoError(t, err)
	assert.Same(t, target, removed)
	assert.Same(t, right, leftAvailable.Left,
		"right reattaches under the first genuinely available node in left's subtree, not the pending leaf on the pure left spine")
	assert.Same(t, leftAvailable, right.Parent)
	assert.Nil(t, leftPending.Left, "a pending node must never gain a child")
	assert.Nil(t, leftPending.Right)
}

func TestRemoveTwoChildrenFallsBackToRestOfTreeWhenLeftSubtreeExhausted(t *testing.T) {
	tr := NewTree("vol-A")

	target := newOK("target", "target")
	target.Parent = tr.Root
	tr.Root.Left = target
	tr.Nodes[target.PeerID] = target

	other := newOK("other", "other")
	other.Parent = tr.Root
	tr.Root.Right = other
	tr.Nodes[other.PeerID] = other

	// target.Left's whole subtree is a single pending leaf: no available
	// node exists there at all.
	left := newPending("left", "left")
	left.Parent = target
	target.Left = left
	tr.Nodes[left.PeerID] = left

	right := newOK("right", "right")
	right.Parent = target
	target.Right = right
	tr.Nodes[right.PeerID] = right

	removed, err := tr.Remove(target)
	require.NoError(t, err)
	assert.Same(t, target, removed)
	assert.Same(t, right, other.Left,
		"falls back to the rest of the tree once target.Left's subtree has no available node")
	assert.Same(t, other, right.Parent)
}

func TestRemoveTwoChildrenErrorsWhenNoAvailableNodeExistsAnywhere(t *testing.T) {
	tr := NewTree("vol-A")

	// filler occupies root's other slot so root itself isn't available.
	filler := newPending("filler", "filler")
	filler.Parent = tr.Root
	tr.Root.Right = filler
	tr.Nodes[filler.PeerID] = filler

	target := newOK("target", "target")
	target.Parent = tr.Root
	tr.Root.Left = target
	tr.Nodes[target.PeerID] = target

	leftPending := newPending("left-pending", "left-pending")
	leftPending.Parent = target
	target.Left = leftPending
	tr.Nodes[leftPending.PeerID] = leftPending

	right := newOK("right", "right")
	right.Parent = target
	target.Right = right
	tr.Nodes[right.PeerID] = right

	_, err := tr.Remove(target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	// The tree must be left untouched on this exhaustion path.
	assert.Same(t, target, tr.Root.Left)
	assert.Same(t, leftPending, target.Left)
	assert.Same(t, right, target.Right)
}

func TestRemovePendingNodeEvictsRegisteredDescendants(t *testing.T) {
	tr := NewTree("vol-A")
	parent := newPending("parent", "parent")
	require.NoError(t, tr.Insert(parent))
	// Insert never attaches under a pending node, so the registered child
	// is wired in directly.
	child := newOK("child", "child")
	child.Parent, child.Level = parent, parent.Level+1
	parent.Left = child
	tr.Nodes[child.PeerID] = child

	before := tr.Count()
	_, err := tr.Remove(parent)
	require.NoError(t, err)

	assert.Equal(t, before-2, tr.Count(), "both the pending parent and its registered child are gone")
	_, stillThere := tr.Nodes[child.PeerID]
	assert.False(t, stillThere, "a healthy descendant of a pending node is evicted with it, not reparented")
}

func TestRemoveAfterQueryRoundTrips(t *testing.T) {
	tr := NewTree("vol-A")
	before := tr.Count()

	n := newPending("h:vol-A", "h")
	require.NoError(t, tr.Insert(n))
	_, err := tr.Remove(n)
	require.NoError(t, err)

	assert.Equal(t, before, tr.Count())
}

// TestFuzzedInsertRemoveKeepsInvariants drives a randomized sequence of
// inserts and removes through a Tree and checks the structural
// invariants of spec §8 after every step.
func TestFuzzedInsertRemoveKeepsInvariants(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(50, 200)

	for round := 0; round < 20; round++ {
		tr := NewTree("vol-fuzz")
		var live []*Node

		var ops int
		f.Fuzz(&ops)
		n := ops%150 + 50

		for i := 0; i < n; i++ {
			insert := len(live) == 0 || i%3 != 0
			if insert {
				id := fmt.Sprintf("h%d:vol-fuzz", i)
				node := newOK(id, fmt.Sprintf("h%d", i))
				if i%5 == 0 {
					node.Status = StatusPending
				}
				if err := tr.Insert(node); err == nil {
					live = append(live, node)
				}
			} else {
				victim := live[0]
				live = live[1:]
				_, _ = tr.Remove(victim)
			}
			assertTreeInvariants(t, tr)
		}
	}
}

func assertTreeInvariants(t *testing.T, tr *Tree) {
	t.Helper()

	require.True(t, tr.Root.FakeRoot)
	require.Equal(t, StatusOK, tr.Root.Status)
	require.Equal(t, 0, tr.Root.Level)

	visited := make(map[string]*Node)
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		visited[n.PeerID] = n
		if n.Parent != nil {
			require.Equal(t, n.Parent.Level+1, n.Level, "node %s level must be parent.level+1", n.PeerID)
		} else {
			require.Equal(t, 0, n.Level)
		}
		require.True(t, n.Status == StatusOK || (n.Left == nil && n.Right == nil),
			"pending node %s must never have children", n.PeerID)
		walk(n.Left)
		walk(n.Right)
	}
	walk(tr.Root)

	require.Equal(t, len(tr.Nodes), len(visited), "every indexed node must be reachable from root and vice versa")
	for id, n := range tr.Nodes {
		require.Same(t, n, visited[id], "nodes[%s] must be the same object reachable from root", id)
	}

	slot := tr.FindAvailableSlot()
	if slot != nil {
		require.Equal(t, StatusOK, slot.Status)
		require.True(t, slot.Left == nil || slot.Right == nil)
	}
}
