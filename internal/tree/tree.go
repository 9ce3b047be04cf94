// Package tree implements the Execution Tree / Step Log (C2): an
// in-memory, append-only, hierarchical record of every agent turn, tool
// call, and decision made during a single turn.
package tree

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the four node kinds named in spec.md §3.
type Kind string

const (
	KindAgent     Kind = "agent"
	KindTool      Kind = "tool"
	KindDecision  Kind = "decision"
	KindSynthesis Kind = "synthesis"
)

// Status is a node's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// RootNodeID is the fixed identifier of every tree's root node, matching
// the original Python implementation's convention
// (original_source/backend/app/agents/execution_tree.py) rather than a
// generated UUID, since it is a harmless fixed point every scenario in
// spec.md §8 can refer to directly.
const RootNodeID = "root"

// Node is one entry in the execution tree (spec.md §3 "ExecutionTree").
type Node struct {
	ID       string
	ParentID string
	Kind     Kind
	Name     string
	Status   Status

	StartedAt  time.Time
	EndedAt    time.Time
	DurationMs int64

	InputSummary  string
	OutputSummary string
	InputData     any
	OutputData    any

	Error    string
	Metadata map[string]any

	Children []string
}

// Tree is a rooted ordered tree of Nodes, owned exclusively by one turn.
// Nodes are appended monotonically and never deleted (spec.md §4.2).
type Tree struct {
	mu            sync.Mutex
	nodes         map[string]*Node
	order         []string
	currentParent string
}

// New creates a tree with a running root query node, per spec.md §3 and
// the original implementation's `__init__`.
func New(query, sessionID string) *Tree {
	root := &Node{
		ID:           RootNodeID,
		ParentID:     "",
		Kind:         KindAgent,
		Name:         "query",
		Status:       StatusRunning,
		StartedAt:    time.Now(),
		InputSummary: truncate(query, 100),
		Metadata:     map[string]any{"session_id": sessionID},
	}
	t := &Tree{
		nodes:         map[string]*Node{RootNodeID: root},
		order:         []string{RootNodeID},
		currentParent: RootNodeID,
	}
	return t
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// StartNode creates a running node under parentID (or the tree's current
// parent pointer when parentID is empty), updates the current-parent
// pointer to the new node, and returns its id.
func (t *Tree) StartNode(name string, kind Kind, parentID string, inputSummary string, inputData any, metadata map[string]any) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parentID == "" {
		parentID = t.currentParent
	}
	parent, ok := t.nodes[parentID]
	if !ok {
		return "", fmt.Errorf("tree: parent node %q does not exist", parentID)
	}

	id := uuid.NewString()
	node := &Node{
		ID:            id,
		ParentID:      parentID,
		Kind:          kind,
		Name:          name,
		Status:        StatusRunning,
		StartedAt:     time.Now(),
		InputSummary:  inputSummary,
		InputData:     inputData,
		Metadata:      metadata,
	}
	t.nodes[id] = node
	t.order = append(t.order, id)
	parent.Children = append(parent.Children, id)
	t.currentParent = id

	return id, nil
}

// CompleteNode marks a node completed, stamps its end time and duration,
// merges metadata, and pops the current-parent pointer back to the
// node's parent.
func (t *Tree) CompleteNode(id string, outputSummary string, outputData any, metadata map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: node %q does not exist", id)
	}

	node.Status = StatusCompleted
	node.EndedAt = time.Now()
	node.DurationMs = node.EndedAt.Sub(node.StartedAt).Milliseconds()
	node.OutputSummary = outputSummary
	node.OutputData = outputData
	node.Metadata = mergeMeta(node.Metadata, metadata)

	t.currentParent = node.ParentID
	return nil
}

// FailNode marks a node failed. A failing node does NOT implicitly fail
// its ancestors; escalation is an orchestrator decision (spec.md §4.2).
func (t *Tree) FailNode(id string, errMsg string, metadata map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: node %q does not exist", id)
	}

	node.Status = StatusFailed
	node.EndedAt = time.Now()
	node.DurationMs = node.EndedAt.Sub(node.StartedAt).Milliseconds()
	node.Error = errMsg
	node.Metadata = mergeMeta(node.Metadata, metadata)

	t.currentParent = node.ParentID
	return nil
}

// SkipNode marks a node skipped with no timing, per spec.md §4.2.
func (t *Tree) SkipNode(id string, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: node %q does not exist", id)
	}
	node.Status = StatusSkipped
	node.Metadata = mergeMeta(node.Metadata, map[string]any{"skip_reason": reason})
	t.currentParent = node.ParentID
	return nil
}

func mergeMeta(existing, incoming map[string]any) map[string]any {
	if incoming == nil {
		return existing
	}
	if existing == nil {
		existing = make(map[string]any, len(incoming))
	}
	for k, v := range incoming {
		existing[k] = v
	}
	return existing
}

// Get returns a copy-free pointer to a node for read-only inspection.
func (t *Tree) Get(id string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	return n, ok
}

// CurrentParent returns the tree's current-parent pointer.
func (t *Tree) CurrentParent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentParent
}

// DictNode is the JSON-serializable projection produced by ToDict.
type DictNode struct {
	ID            string         `json:"id"`
	ParentID      string         `json:"parent_id,omitempty"`
	Kind          Kind           `json:"kind"`
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
	DurationMs    int64          `json:"duration_ms,omitempty"`
	InputSummary  string         `json:"input_summary,omitempty"`
	OutputSummary string         `json:"output_summary,omitempty"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Children      []*DictNode    `json:"children,omitempty"`
}

// ToDict produces a JSON-serializable tree rooted at RootNodeID, for
// persistence and UI rendering (spec.md §4.2).
func (t *Tree) ToDict() *DictNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.toDictLocked(RootNodeID)
}

func (t *Tree) toDictLocked(id string) *DictNode {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	d := &DictNode{
		ID:            n.ID,
		ParentID:      n.ParentID,
		Kind:          n.Kind,
		Name:          n.Name,
		Status:        n.Status,
		StartedAt:     n.StartedAt,
		DurationMs:    n.DurationMs,
		InputSummary:  n.InputSummary,
		OutputSummary: n.OutputSummary,
		Error:         n.Error,
		Metadata:      n.Metadata,
	}
	if !n.EndedAt.IsZero() {
		ended := n.EndedAt
		d.EndedAt = &ended
	}
	for _, childID := range n.Children {
		if child := t.toDictLocked(childID); child != nil {
			d.Children = append(d.Children, child)
		}
	}
	return d
}

// Stats summarizes node counts per status and total duration across the
// tree, per spec.md §4.2's "aggregate statistics".
type Stats struct {
	CountByStatus map[Status]int
	TotalDuration time.Duration
}

// Stats computes aggregate statistics over all nodes, including the root.
func (t *Tree) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{CountByStatus: make(map[Status]int)}
	for _, id := range t.order {
		n := t.nodes[id]
		stats.CountByStatus[n.Status]++
		stats.TotalDuration += time.Duration(n.DurationMs) * time.Millisecond
	}
	return stats
}

// StepRecords returns all non-root nodes with a terminal status, in
// insertion order, as flattened step records — one source projection away
// from spec.md §3's "Step record" shape.
func (t *Tree) StepRecords() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*Node
	for _, id := range t.order {
		if id == RootNodeID {
			continue
		}
		n := t.nodes[id]
		if n.Status == StatusCompleted || n.Status == StatusFailed || n.Status == StatusSkipped {
			out = append(out, n)
		}
	}
	return out
}

// Depth returns the longest root-to-leaf path length, counting edges
// (so a tree with only the root has depth 0), to check against
// max_graph_depth (spec.md §8 invariant 8).
func (t *Tree) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depthLocked(RootNodeID)
}

func (t *Tree) depthLocked(id string) int {
	n, ok := t.nodes[id]
	if !ok || len(n.Children) == 0 {
		return 0
	}
	max := 0
	for _, childID := range n.Children {
		if d := t.depthLocked(childID); d > max {
			max = d
		}
	}
	return max + 1
}
