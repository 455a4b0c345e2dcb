package topology

import "github.com/google/uuid"

// Status is the lifecycle state of a Node.
type Status string

const (
	// StatusPending marks a node that has queried an image but not yet
	// registered its iSCSI addressing.
	StatusPending Status = "pending"
	// StatusOK marks a node that is fully load-bearing.
	StatusOK Status = "OK"
)

// Identity is the serializable view of a Node returned to clients.
type Identity struct {
	Host   string `json:"host"`
	Port   string `json:"port"`
	IQN    string `json:"iqn"`
	Lun    string `json:"lun"`
	Status string `json:"status"`
	PeerID string `json:"peer_id"`
}

// Node is a vertex in one image's tree. Parent/Left/Right form a
// regular, mutable pointer graph; Tree.Nodes is the authoritative index
// used for lookup and cleanup, and the tree's insertion-order list of
// peer ids gives iteration order.
type Node struct {
	PeerID string
	Host   string
	Port   string
	IQN    string
	Lun    string
	Status Status
	Level  int

	Parent *Node
	Left   *Node
	Right  *Node

	FakeRoot bool
}

// Identity returns the wire view of n.
func (n *Node) Identity() Identity {
	return Identity{
		Host:   n.Host,
		Port:   n.Port,
		IQN:    n.IQN,
		Lun:    n.Lun,
		Status: string(n.Status),
		PeerID: n.PeerID,
	}
}

// Sibling returns the other child of n's parent, or nil if n is the
// root or an only child.
func (n *Node) Sibling() *Node {
	if n.Parent == nil {
		return nil
	}
	if n.Parent.Left == n {
		return n.Parent.Right
	}
	return n.Parent.Left
}

// Available reports whether n can accept another child: it must be OK
// and have at least one empty child slot.
func (n *Node) Available() bool {
	return n != nil && n.Status == StatusOK && (n.Left == nil || n.Right == nil)
}

// newFakeRoot builds the synthetic root of a fresh Tree: always OK,
// always fake, with random opaque filler addressing fields so it never
// collides with a real peer id.
func newFakeRoot() *Node {
	return &Node{
		PeerID:   uuid.NewString(),
		Host:     uuid.NewString(),
		Port:     uuid.NewString(),
		IQN:      uuid.NewString(),
		Lun:      uuid.NewString(),
		Status:   StatusOK,
		FakeRoot: true,
		Level:    0,
	}
}
