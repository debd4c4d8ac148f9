// Package config loads server configuration with defaults overlaid by
// whatever the client (LSP InitializationOptions, CLI flags, or a JSON
// file) supplies.
package config

import (
	"encoding/json"
	"fmt"
	"io"
)

// Config carries everything the dispatcher and its collaborators need but
// treat as opaque. ParserConfig and TypeCheckConfig are handed verbatim to
// the Parser and TypeCheck services.
type Config struct {
	SourceRoot string `json:"source_root"`

	// ParallelThreshold is the batch size above which the Scheduler runs a
	// Recheck's check-set in parallel. The threshold is a judgment call,
	// exposed here rather than hardcoded so an operator can tune it.
	ParallelThreshold int `json:"parallel_threshold"`

	// HeapCollectRatio is the heap_use_ratio above which a TypeCheckRequest
	// triggers an aggressive Shared Heap collection.
	HeapCollectRatio float64 `json:"heap_collect_ratio"`

	// LookupCacheSize bounds the number of entries kept in the Lookup Cache.
	LookupCacheSize int `json:"lookup_cache_size"`

	// HeapCapacityBytes is the budget HeapUseRatio divides against.
	HeapCapacityBytes int64 `json:"heap_capacity_bytes"`

	// SchedulerQueueSize bounds the low-priority task queue.
	SchedulerQueueSize int `json:"scheduler_queue_size"`

	// HistoryDBPath, if set, opens a SQLite-backed Recheck history the
	// RageRequest collector reads from. Empty disables history logging.
	HistoryDBPath string `json:"history_db_path,omitempty"`

	ParserConfig    json.RawMessage `json:"parser_config,omitempty"`
	TypeCheckConfig json.RawMessage `json:"typecheck_config,omitempty"`

	// Protocols declares additional structural protocols the type order
	// should recognize beyond its built-in set (Iterable, Sized, ...),
	// consulted by Environment.InferProtocols during every Recheck.
	Protocols []ProtocolConfig `json:"protocols,omitempty"`
}

// ProtocolConfig names a structural protocol and the methods a class must
// define to be inferred as conforming to it.
type ProtocolConfig struct {
	Name            string   `json:"name"`
	RequiredMethods []string `json:"required_methods"`
}

var defaultConfig = Config{
	SourceRoot:         ".",
	ParallelThreshold:  5,
	HeapCollectRatio:   0.5,
	LookupCacheSize:    512,
	SchedulerQueueSize: 64,
	HeapCapacityBytes:  256 << 20,
}

// Load overlays v (typically the raw InitializationOptions of an LSP
// request) onto defaultConfig. Fields absent from v keep their default.
func Load(v any) (Config, error) {
	cfg := defaultConfig

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, nil
}

// LoadFromJSON reads JSON from r into a Config, overlaying defaultConfig.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := defaultConfig

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
