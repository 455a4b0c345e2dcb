package topology

// Tree is one image's binary topology: a synthetic, always-present root
// and the real peer nodes attached beneath it.
type Tree struct {
	ImageID string
	Root    *Node
	Nodes   map[string]*Node

	// order records peer ids in insertion order (root included) so that
	// the "other nodes at this level" half of a parent set is returned
	// deterministically, matching the order peers first attached in.
	// Entries for nodes later removed are skipped on read rather than
	// spliced out of the slice; a peer id inserted again after removal
	// appears twice here and is read once, at its first position.
	order []string
}

// NewTree creates an empty Tree for imageID, with its synthetic root
// already constructed.
func NewTree(imageID string) *Tree {
	root := newFakeRoot()
	return &Tree{
		ImageID: imageID,
		Root:    root,
		Nodes:   map[string]*Node{root.PeerID: root},
		order:   []string{root.PeerID},
	}
}

// Count returns the number of nodes tracked by the tree, including the root.
func (t *Tree) Count() int {
	return len(t.Nodes)
}

// FindAvailableSlot performs a breadth-first scan from root and returns
// the first available node encountered, enqueuing children left before
// right so that the tree fills level by level. It returns nil when no OK
// node has a free child slot, e.g. when root's two children are both
// still pending.
func (t *Tree) FindAvailableSlot() *Node {
	return findAvailable(t.Root, nil)
}

// findAvailable performs the same left-before-right breadth-first scan
// as FindAvailableSlot, but starting at start rather than always at the
// tree root, and refusing to enter the subtree rooted at exclude (if
// non-nil). exclude lets Remove search the rest of the tree without
// ever walking into the subtree it is about to relocate, which would
// otherwise risk picking one of that subtree's own nodes and
// introducing a cycle.
func findAvailable(start, exclude *Node) *Node {
	if start == nil || start == exclude {
		return nil
	}
	queue := []*Node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == nil || n == exclude {
			continue
		}
		if n.Available() {
			return n
		}
		queue = append(queue, n.Left, n.Right)
	}
	return nil
}

// Insert attaches newNode to the shallowest available slot. newNode must
// not already belong to the tree and must have no parent.
func (t *Tree) Insert(newNode *Node) error {
	if newNode == nil {
		return newInvalidParameter("new_node", "", "the new node cannot be nil")
	}
	if _, exists := t.Nodes[newNode.PeerID]; exists {
		return newInvalidParameter("new_node", newNode.PeerID, "the node already exists in the tree")
	}
	if newNode.Parent != nil {
		return newInvalidParameter("new_node", newNode.PeerID, "the node already has a parent")
	}

	slot := t.FindAvailableSlot()
	if slot == nil {
		return newInvalidParameter("new_node", newNode.PeerID, "no available slot")
	}

	newNode.Left = nil
	newNode.Right = nil
	newNode.Parent = slot
	newNode.Level = slot.Level + 1
	if slot.Left == nil {
		slot.Left = newNode
	} else {
		slot.Right = newNode
	}

	t.Nodes[newNode.PeerID] = newNode
	t.order = append(t.order, newNode.PeerID)
	return nil
}

// Remove splices target out of the tree and returns it. See spec §4.2
// for the four cases; pending nodes have their entire subtree evicted
// rather than reparented (§9 "pending-node subtree eviction" — this is
// intentional and reproduced from the original tracker, not a bug: a
// still-pending parent's descendants, healthy or not, disappear with it).
func (t *Tree) Remove(target *Node) (*Node, error) {
	if target == nil {
		return nil, newInvalidParameter("node", "", "the node to remove is not in the tree")
	}

	if target.Status == StatusPending {
		if target.Left != nil {
			t.evictSubtree(target.Left)
			target.Left = nil
		}
		if target.Right != nil {
			t.evictSubtree(target.Right)
			target.Right = nil
		}
	}

	var up *Node
	switch {
	case target.Left != nil && target.Right != nil:
		up = target.Left
		// Prefer an available node within target.Left's own subtree, so
		// target.Right stays close to where it was. A node only ever grows
		// children while it is OK, so this can come up empty when every
		// leaf under target.Left happens to be pending; fall back to the
		// rest of the tree in that case, excluding target.Right's own
		// subtree so it's never reattached onto one of its own descendants.
		c := findAvailable(target.Left, nil)
		if c == nil {
			c = findAvailable(t.Root, target.Right)
		}
		if c == nil {
			return nil, newInvalidParameter("node", target.PeerID,
				"no available node to reattach the right subtree onto: every other node is pending or full")
		}
		target.Right.Parent = c
		if c.Left == nil {
			c.Left = target.Right
		} else {
			c.Right = target.Right
		}
	case target.Left != nil:
		up = target.Left
	case target.Right != nil:
		up = target.Right
	}

	if up != nil {
		up.Parent = target.Parent
	}
	if target.Parent != nil {
		if target.Parent.Left == target {
			target.Parent.Left = up
		} else {
			target.Parent.Right = up
		}
	}
	if target == t.Root {
		t.Root = up
	}

	delete(t.Nodes, target.PeerID)
	t.recomputeLevels()
	return target, nil
}

// evictSubtree removes n and everything beneath it from the tree's
// index without attempting to splice or reparent anything.
func (t *Tree) evictSubtree(n *Node) {
	if n == nil {
		return
	}
	t.evictSubtree(n.Left)
	t.evictSubtree(n.Right)
	delete(t.Nodes, n.PeerID)
}

// recomputeLevels re-walks the tree breadth-first and recomputes every
// node's level from its parent, root always being 0.
func (t *Tree) recomputeLevels() {
	if t.Root == nil {
		return
	}
	t.Root.Level = 0
	queue := []*Node{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == nil {
			continue
		}
		if n.Parent != nil {
			n.Level = n.Parent.Level + 1
		} else {
			n.Level = 0
		}
		queue = append(queue, n.Left, n.Right)
	}
}

// GetParents returns the default btree parent set for node: the direct
// parent followed by every other node at the parent's depth, in
// insertion order. Returns nil if node's parent is the synthetic root.
func (t *Tree) GetParents(node *Node) []Identity {
	if node.Parent == nil || node.Parent.FakeRoot {
		return nil
	}

	parents := []Identity{node.Parent.Identity()}
	level := node.Parent.Level
	seen := make(map[string]bool, len(t.order))
	for _, id := range t.order {
		if seen[id] {
			continue
		}
		seen[id] = true
		peer, ok := t.Nodes[id]
		if !ok || peer == node.Parent {
			continue
		}
		if peer.Level == level {
			parents = append(parents, peer.Identity())
		}
	}
	return parents
}

// GetParentAndUncle returns the "with-uncle" parent set: the direct
// parent and its sibling, omitting the sibling when absent. Returns nil
// if node's parent is the synthetic root.
func (t *Tree) GetParentAndUncle(node *Node) []Identity {
	if node.Parent == nil || node.Parent.FakeRoot {
		return nil
	}

	parents := []Identity{node.Parent.Identity()}
	if sibling := node.Parent.Sibling(); sibling != nil {
		parents = append(parents, sibling.Identity())
	}
	return parents
}
