package topology

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultExpiry is the reference heartbeat expiry threshold (T_expire).
const DefaultExpiry = 30 * time.Second

// VolumeSummary is one entry of Engine.List.
type VolumeSummary struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// HeartbeatEntry is one entry of Engine.Heartbeat's result.
type HeartbeatEntry struct {
	PeerID  string     `json:"peer_id"`
	Parents []Identity `json:"parents"`
}

// QueryResult is Engine.Query's result.
type QueryResult struct {
	PeerID  string     `json:"peer_id"`
	Parents []Identity `json:"parents"`
}

// Engine is the public facade over the per-image trees and the host
// index. Every exported method takes the engine's lock for its entire
// duration; none of them suspend or do I/O while holding it.
type Engine struct {
	mu     sync.Mutex
	trees  map[string]*Tree
	hosts  *HostIndex
	policy ParentPolicy
	expire time.Duration
	// scanInterval overrides the scanner cadence; zero means "use expire".
	scanInterval time.Duration
	logger       *slog.Logger
	clock        func() time.Time

	scanner     *Scanner
	scannerOnce sync.Once
	stopScan    context.CancelFunc
}

// EngineOption configures optional Engine behavior.
type EngineOption func(*Engine)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the engine's notion of "now", for deterministic tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithExpiry overrides DefaultExpiry.
func WithExpiry(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.expire = d
		}
	}
}

// WithScanInterval overrides the scanner's cadence, which otherwise
// defaults to the expiry threshold (spec §4.5's "wait-equal-to-threshold").
func WithScanInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.scanInterval = d
		}
	}
}

// NewEngine constructs an Engine parameterized by policy. The scanner is
// built eagerly but only started lazily, on the first Query call.
func NewEngine(policy ParentPolicy, opts ...EngineOption) *Engine {
	e := &Engine{
		trees:  make(map[string]*Tree),
		policy: policy,
		expire: DefaultExpiry,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.hosts = NewHostIndex(e.clock)
	interval := e.scanInterval
	if interval <= 0 {
		interval = e.expire
	}
	e.scanner = newScanner(e, interval)
	return e
}

// Close stops the background scanner. The process is normally expected
// to be terminated rather than shut down cleanly, but Close lets tests
// and a graceful cmd/voltd shutdown release the goroutine.
func (e *Engine) Close() {
	if e.stopScan != nil {
		e.stopScan()
	}
}

func (e *Engine) ensureScannerStarted() {
	e.scannerOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		e.stopScan = cancel
		go e.scanner.run(ctx)
	})
}

func (e *Engine) treeFor(imageID string) *Tree {
	t, ok := e.trees[imageID]
	if !ok {
		t = NewTree(imageID)
		e.trees[imageID] = t
	}
	return t
}

// Query lazily creates the tree for imageID, inserts a pending node for
// host if it isn't already attached, and returns its peer id and parent
// set. It is idempotent: calling it twice in a row for the same
// (imageID, host) returns the same peer id without growing the tree.
// Only OK nodes accept children, so when the tree has no available slot
// the error is logged, nothing is inserted or bound, and the result
// carries the peer id with no parents.
func (e *Engine) Query(imageID, host string) QueryResult {
	e.ensureScannerStarted()

	e.mu.Lock()
	defer e.mu.Unlock()

	tree := e.treeFor(imageID)
	peerID := host + ":" + imageID

	node, exists := tree.Nodes[peerID]
	if !exists {
		node = &Node{PeerID: peerID, Host: host, Status: StatusPending}
		if err := tree.Insert(node); err != nil {
			e.logger.Error("query: failed to insert pending node", "image_id", imageID, "host", host, "error", err)
			return QueryResult{PeerID: peerID}
		}
		if err := e.hosts.Bind(host, peerID, node); err != nil {
			// The peer_id existence check above makes this unreachable in
			// practice; treat it as an internal bug and swallow it.
			e.logger.Error("query: unexpected duplicate binding", "host", host, "peer_id", peerID, "error", err)
		}
	}

	return QueryResult{PeerID: peerID, Parents: e.policy.Parents(tree, node)}
}

// Register creates or updates peerID's addressing in imageID's tree and
// transitions it to OK. It fails with NotFound if the tree does not
// exist yet.
func (e *Engine) Register(imageID, peerID string, id Identity) (Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tree, ok := e.trees[imageID]
	if !ok {
		return Identity{}, newNotFound("image", imageID)
	}

	node, exists := tree.Nodes[peerID]
	if !exists {
		node = &Node{
			PeerID: peerID,
			Host:   id.Host,
			Port:   id.Port,
			IQN:    id.IQN,
			Lun:    id.Lun,
			Status: StatusOK,
		}
		if err := tree.Insert(node); err != nil {
			return Identity{}, err
		}
	} else {
		node.Host = id.Host
		node.Port = id.Port
		node.IQN = id.IQN
		node.Lun = id.Lun
		node.Status = StatusOK
	}

	return node.Identity(), nil
}

// Remove unbinds peerID from its host and deletes it from imageID's
// tree.
func (e *Engine) Remove(imageID, peerID string) error {
	if peerID == "" {
		return newInvalidParameter("peer_id", "", "peer_id must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tree, ok := e.trees[imageID]
	if !ok {
		return newNotFound("image", imageID)
	}
	node, ok := tree.Nodes[peerID]
	if !ok {
		return newNotFound("peer", peerID)
	}

	if err := e.hosts.Unbind(node.Host, peerID); err != nil {
		return err
	}
	_, err := tree.Remove(node)
	return err
}

// List returns one summary per known image: its id and current node
// count (including the synthetic root). Trees are never removed once
// created, even when empty.
func (e *Engine) List() []VolumeSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]VolumeSummary, 0, len(e.trees))
	for id, tree := range e.trees {
		out = append(out, VolumeSummary{ID: id, Count: tree.Count()})
	}
	return out
}

// Heartbeat refreshes host's liveness and returns the current parent set
// for every node it owns. Returns an empty (non-nil) slice if host is
// unknown, which is also what a previously-evicted host sees — there is
// no observable difference between "evicted" and "never existed".
func (e *Engine) Heartbeat(host string) []HeartbeatEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	bindings := e.hosts.Touch(host)
	if bindings == nil {
		return []HeartbeatEntry{}
	}

	out := make([]HeartbeatEntry, 0, len(bindings))
	for peerID, node := range bindings {
		imageID := imageIDFromPeerID(peerID)
		tree, ok := e.trees[imageID]
		if !ok {
			continue
		}
		out = append(out, HeartbeatEntry{PeerID: peerID, Parents: e.policy.Parents(tree, node)})
	}
	return out
}

// sweep is invoked periodically by the Scanner. It evicts every host
// whose last heartbeat predates the expiry threshold and removes its
// nodes from every tree it belonged to. Failures to remove an individual
// node (e.g. a racing explicit Remove already took it) are logged and
// swallowed: the next pass is authoritative.
func (e *Engine) sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, host := range e.hosts.Expired(e.expire) {
		bindings := e.hosts.Evict(host)
		for peerID, node := range bindings {
			imageID := imageIDFromPeerID(peerID)
			tree, ok := e.trees[imageID]
			if !ok {
				continue
			}
			if _, err := tree.Remove(node); err != nil {
				e.logger.Warn("scanner: failed to remove expired node", "host", host, "peer_id", peerID, "error", err)
			}
		}
	}
}

// imageIDFromPeerID recovers the image id from a non-root peer id of the
// form "host:image_id" by splitting on the first colon.
func imageIDFromPeerID(peerID string) string {
	if i := strings.IndexByte(peerID, ':'); i >= 0 {
		return peerID[i+1:]
	}
	return ""
}
