package topology

import "fmt"

// Parent-selection policy names, as exposed in configuration.
const (
	PolicyBTree          = "btree"
	PolicyBTreeWithUncle = "btree_with_uncle"
)

// ParentPolicy computes the parent set a newly attached or heartbeating
// host should pull data from. The engine is parameterized by exactly one
// policy at construction; callers cannot change it per request.
type ParentPolicy interface {
	Name() string
	Parents(t *Tree, n *Node) []Identity
}

// NewParentPolicy resolves a policy name from configuration. The empty
// string defaults to PolicyBTree.
func NewParentPolicy(name string) (ParentPolicy, error) {
	switch name {
	case "", PolicyBTree:
		return btreePolicy{}, nil
	case PolicyBTreeWithUncle:
		return btreeWithUnclePolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown parent policy %q", ErrInvalidParameter, name)
	}
}

// btreePolicy returns the direct parent plus every other node at the
// same depth (level-wide peers).
type btreePolicy struct{}

func (btreePolicy) Name() string { return PolicyBTree }

func (btreePolicy) Parents(t *Tree, n *Node) []Identity {
	return t.GetParents(n)
}

// btreeWithUnclePolicy returns the direct parent plus its sibling,
// omitting the sibling when the parent is an only child.
type btreeWithUnclePolicy struct{}

func (btreeWithUnclePolicy) Name() string { return PolicyBTreeWithUncle }

func (btreeWithUnclePolicy) Parents(t *Tree, n *Node) []Identity {
	return t.GetParentAndUncle(n)
}
