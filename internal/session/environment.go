// Package session implements the Session Context Store (C4): a
// per-session key→value Environment holding tool outputs, conversation
// history, and dataset metadata, serializable across turns, plus the
// Session/Service persistence contract of spec.md §6.
package session

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/insightloop/engine/internal/tool"
)

// Tag discriminates the recognized Environment value shapes (spec.md §3).
type Tag string

const (
	TagTable           Tag = "table"
	TagChartSpec       Tag = "chart_spec"
	TagScalar          Tag = "scalar"
	TagText            Tag = "text"
	TagJSON            Tag = "json"
	TagEmbeddingMatrix Tag = "embedding_matrix"
	// TagTableMetadata is the schema+sample-only projection a large table
	// collapses to for cross-turn persistence.
	TagTableMetadata Tag = "table_metadata"
)

// Table is a row-oriented dataset: an ordered sequence of records, each a
// mapping of column name to scalar-or-null.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ChartSpec is a structured chart description with a URI to the rendered
// image, per spec.md §3.
type ChartSpec struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Axes     []string `json:"axes,omitempty"`
	Series   []Series `json:"series,omitempty"`
	ImageURI string   `json:"image_uri,omitempty"`
}

// Series is one data series within a ChartSpec.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// TableMetadata is the schema+sample-only form a table collapses to once
// it exceeds the configured row threshold (spec.md §4.4).
type TableMetadata struct {
	Shape   [2]int            `json:"shape"`
	Columns []string          `json:"columns"`
	Dtypes  map[string]string `json:"dtypes,omitempty"`
	Sample  []map[string]any  `json:"sample"`
	Note    string            `json:"note"`
}

// Value is a tagged Environment entry. Exactly one of the typed fields is
// populated, matching Tag.
type Value struct {
	Tag Tag `json:"tag"`

	Scalar        any            `json:"scalar,omitempty"`
	Text          string         `json:"text,omitempty"`
	JSON          any            `json:"json,omitempty"`
	Table         *Table         `json:"table,omitempty"`
	ChartSpec     *ChartSpec     `json:"chart_spec,omitempty"`
	TableMetadata *TableMetadata `json:"table_metadata,omitempty"`
	// EmbeddingMatrix is never persisted across turns (spec.md §3); it is
	// only ever present on a live, in-turn Environment.
	EmbeddingMatrix [][]float64 `json:"-"`
}

// entry is the internal storage record: a Value plus free-form metadata.
type entry struct {
	value    Value
	metadata map[string]any
}

// HistoryEntry is one audit-log line for an Environment mutation within a
// single turn (spec.md §3 invariant: "a history log of every
// add/replace/remove is maintained within a single turn and discarded
// between turns"), shaped after
// original_source/backend/app/agents/tree/environment.py's `_history`.
type HistoryEntry struct {
	Action    string    `json:"action"` // "add" | "replace" | "remove" | "clear"
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// Environment is the per-turn key→tagged-value store (C4).
type Environment struct {
	mu      sync.Mutex
	storage map[string]entry
	history []HistoryEntry
	// keyOrder preserves insertion order for stable Keys()/Items() output.
	keyOrder []string
}

// NewEnvironment returns an empty Environment, born fresh on a session's
// first turn (spec.md §3 "Environment is born empty on first turn").
func NewEnvironment() *Environment {
	return &Environment{storage: make(map[string]entry)}
}

// AddValue inserts or replaces a key with an explicitly tagged Value,
// logging whether this was an add or a replace (spec.md §3/§4.4).
func (e *Environment) AddValue(key string, value Value, metadata map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addLocked(key, value, metadata)
}

func (e *Environment) addLocked(key string, value Value, metadata map[string]any) {
	action := "add"
	if _, exists := e.storage[key]; exists {
		action = "replace"
	} else {
		e.keyOrder = append(e.keyOrder, key)
	}
	e.storage[key] = entry{value: value, metadata: metadata}
	e.history = append(e.history, HistoryEntry{Action: action, Key: key, Timestamp: time.Now()})
}

// Add inserts or replaces a key from an untagged value, inferring its Tag
// by Go type (tool.Context handlers, which do not know about the
// session package's Value type, call this form). Satisfies
// tool.EnvironmentAccessor.
func (e *Environment) Add(key string, value any, metadata map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addLocked(key, inferValue(value), metadata)
}

// inferValue tags an arbitrary Go value produced by a tool handler.
func inferValue(v any) Value {
	switch val := v.(type) {
	case Value:
		return val
	case *Table:
		return Value{Tag: TagTable, Table: val}
	case Table:
		return Value{Tag: TagTable, Table: &val}
	case *ChartSpec:
		return Value{Tag: TagChartSpec, ChartSpec: val}
	case ChartSpec:
		return Value{Tag: TagChartSpec, ChartSpec: &val}
	case [][]float64:
		return Value{Tag: TagEmbeddingMatrix, EmbeddingMatrix: val}
	case string:
		return Value{Tag: TagText, Text: val}
	case float64, int, int32, int64, bool:
		return Value{Tag: TagScalar, Scalar: val}
	case nil:
		return Value{Tag: TagScalar, Scalar: nil}
	default:
		return Value{Tag: TagJSON, JSON: val}
	}
}

// Get retrieves a value's raw payload, matching the
// tool.EnvironmentAccessor contract.
func (e *Environment) Get(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.storage[key]
	if !ok {
		return nil, false
	}
	return unwrapValue(ent.value), true
}

// unwrapValue returns the payload a Value carries, independent of tag.
func unwrapValue(v Value) any {
	switch v.Tag {
	case TagTable:
		return v.Table
	case TagChartSpec:
		return v.ChartSpec
	case TagTableMetadata:
		return v.TableMetadata
	case TagScalar:
		return v.Scalar
	case TagText:
		return v.Text
	case TagJSON:
		return v.JSON
	case TagEmbeddingMatrix:
		return v.EmbeddingMatrix
	default:
		return nil
	}
}

// GetValue is the typed counterpart of Get, returning the full Value.
func (e *Environment) GetValue(key string) (Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.storage[key]
	if !ok {
		return Value{}, false
	}
	return ent.value, true
}

// Remove deletes a key, logging the removal, and reports whether it
// existed.
func (e *Environment) Remove(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.storage[key]; !ok {
		return false
	}
	delete(e.storage, key)
	e.keyOrder = removeString(e.keyOrder, key)
	e.history = append(e.history, HistoryEntry{Action: "remove", Key: key, Timestamp: time.Now()})
	return true
}

func removeString(s []string, target string) []string {
	out := s[:0]
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// Find returns keys matching a glob-style pattern, where `*` matches any
// run of characters — the same translation
// (`pattern.replace("*", ".*")`) the original Python Environment uses,
// not a full regex language.
func (e *Environment) Find(pattern string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	re, err := globToRegexp(pattern)
	if err != nil {
		return nil
	}

	var out []string
	for _, key := range e.keyOrder {
		if re.MatchString(key) {
			out = append(out, key)
		}
	}
	return out
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// Keys returns all keys in insertion order.
func (e *Environment) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.keyOrder))
	copy(out, e.keyOrder)
	return out
}

// Items returns a snapshot copy of every key→Value pair.
func (e *Environment) Items() map[string]Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Value, len(e.storage))
	for k, ent := range e.storage {
		out[k] = ent.value
	}
	return out
}

// Clear empties the store and logs the erasure so downstream auditing can
// see it (spec.md §4.4).
func (e *Environment) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.storage = make(map[string]entry)
	e.keyOrder = nil
	e.history = append(e.history, HistoryEntry{Action: "clear", Timestamp: time.Now()})
}

// History returns the audit log accumulated so far this turn. It is
// discarded (a fresh Environment is created) between turns.
func (e *Environment) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]HistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// snapshotEntry is the self-describing JSON record one Environment key
// serializes to (spec.md §4.4).
type snapshotEntry struct {
	Tag      Tag             `json:"tag"`
	Data     json.RawMessage `json:"data"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// Snapshot serializes the store to a self-describing,
// JSON-round-trippable map. Tables larger than largeTableRowThreshold
// collapse to a table_metadata record; embedding_matrix values are
// dropped entirely (never persisted across turns), per spec.md §3/§4.4.
func (e *Environment) Snapshot(largeTableRowThreshold int) (map[string]json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]json.RawMessage, len(e.storage))
	for key, ent := range e.storage {
		v := ent.value
		if v.Tag == TagEmbeddingMatrix {
			continue
		}
		if v.Tag == TagTable && v.Table != nil && len(v.Table.Rows) > largeTableRowThreshold {
			v = tableToMetadata(v.Table)
		}

		data, err := marshalValueData(v)
		if err != nil {
			return nil, fmt.Errorf("session: marshaling %q: %w", key, err)
		}

		se := snapshotEntry{Tag: v.Tag, Data: data, Metadata: ent.metadata}
		raw, err := json.Marshal(se)
		if err != nil {
			return nil, fmt.Errorf("session: marshaling entry %q: %w", key, err)
		}
		out[key] = raw
	}
	return out, nil
}

func tableToMetadata(t *Table) Value {
	sampleLen := len(t.Rows)
	if sampleLen > 5 {
		sampleLen = 5
	}
	dtypes := make(map[string]string, len(t.Columns))
	if sampleLen > 0 {
		for _, col := range t.Columns {
			dtypes[col] = inferDtype(t.Rows[0][col])
		}
	}
	return Value{
		Tag: TagTableMetadata,
		TableMetadata: &TableMetadata{
			Shape:   [2]int{len(t.Rows), len(t.Columns)},
			Columns: t.Columns,
			Dtypes:  dtypes,
			Sample:  append([]map[string]any{}, t.Rows[:sampleLen]...),
			Note:    "large table, not preserved",
		},
	}
}

func inferDtype(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64, int, int64:
		return "number"
	default:
		return "string"
	}
}

func marshalValueData(v Value) (json.RawMessage, error) {
	switch v.Tag {
	case TagTable:
		return json.Marshal(v.Table)
	case TagChartSpec:
		return json.Marshal(v.ChartSpec)
	case TagTableMetadata:
		return json.Marshal(v.TableMetadata)
	case TagScalar:
		return json.Marshal(v.Scalar)
	case TagText:
		return json.Marshal(v.Text)
	case TagJSON:
		return json.Marshal(v.JSON)
	default:
		return json.Marshal(nil)
	}
}

// Restore rebuilds an Environment from a Snapshot. table_metadata entries
// are reconstructed as metadata-only values — per spec.md §4.4's
// "deserialization ... table_metadata values are returned as none", the
// restored Value carries only shape/columns/sample, never the original
// rows; a specialist that needs the full table again must re-invoke the
// producing tool (see SPEC_FULL.md's Open Question decision).
func Restore(data map[string]json.RawMessage) (*Environment, error) {
	env := NewEnvironment()
	for key, raw := range data {
		var se snapshotEntry
		if err := json.Unmarshal(raw, &se); err != nil {
			return nil, fmt.Errorf("session: restoring %q: %w", key, err)
		}
		v, err := unmarshalValueData(se.Tag, se.Data)
		if err != nil {
			return nil, fmt.Errorf("session: restoring %q: %w", key, err)
		}
		env.storage[key] = entry{value: v, metadata: se.Metadata}
		env.keyOrder = append(env.keyOrder, key)
	}
	return env, nil
}

func unmarshalValueData(tag Tag, data json.RawMessage) (Value, error) {
	v := Value{Tag: tag}
	switch tag {
	case TagTable:
		v.Table = &Table{}
		return v, json.Unmarshal(data, v.Table)
	case TagChartSpec:
		v.ChartSpec = &ChartSpec{}
		return v, json.Unmarshal(data, v.ChartSpec)
	case TagTableMetadata:
		v.TableMetadata = &TableMetadata{}
		return v, json.Unmarshal(data, v.TableMetadata)
	case TagScalar:
		return v, json.Unmarshal(data, &v.Scalar)
	case TagText:
		return v, json.Unmarshal(data, &v.Text)
	case TagJSON:
		return v, json.Unmarshal(data, &v.JSON)
	default:
		return v, nil
	}
}

var _ tool.EnvironmentAccessor = (*Environment)(nil)
