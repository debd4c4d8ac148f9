// Package metrics implements the metrics sink: every request emits a
// server_request event and every Recheck emits a shared memory size
// event. The sink interface lets tests substitute a collecting fake; the
// default implementation logs the way the rest of the core does.
package metrics

import (
	"log"
	"time"
)

// Sink receives the two event kinds the core emits.
type Sink interface {
	RecordServerRequest(kind string, duration time.Duration)
	RecordHeapSize(bytes int64)
}

// LogSink is the default Sink, writing through the standard logger.
type LogSink struct{}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink { return &LogSink{} }

func (LogSink) RecordServerRequest(kind string, duration time.Duration) {
	log.Printf("metrics: server_request kind=%s duration=%s", kind, duration)
}

func (LogSink) RecordHeapSize(bytes int64) {
	log.Printf("metrics: shared memory size bytes=%d", bytes)
}
