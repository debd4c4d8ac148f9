package dispatch

import (
	"log"
	"sync"

	"strata/internal/config"
	"strata/internal/diag"
	"strata/internal/environment"
	"strata/internal/heap"
	"strata/internal/history"
	"strata/internal/lookup"
	"strata/internal/metrics"
	"strata/internal/parsersvc"
	"strata/internal/scheduler"
	"strata/internal/typechecksvc"
)

// Connections is the mutable record of live transport state, protected by
// ServerState.Lock.
type Connections struct {
	FileNotifiers     []string
	PersistentClients []string
}

// ServerState is the ServerState singleton: everything a running server
// needs across requests. Only the Dispatcher goroutine mutates
// Environment, Errors, Handles, Lookups, and Deferred; Connections is the
// one field workers or transport goroutines may touch, and only under
// Lock.
type ServerState struct {
	Config config.Config

	Environment *environment.Environment
	Heap        *heap.Heap
	Lookups     *lookup.Cache

	Errors  map[heap.FileHandle][]diag.Error
	Handles map[heap.FileHandle]struct{}

	Deferred []Request

	Connections Connections
	Lock        sync.Mutex

	Scheduler *scheduler.Scheduler
	Parser    *parsersvc.Service
	TypeCheck *typechecksvc.Service
	Metrics   metrics.Sink

	// History, when non-nil, logs every Recheck's outcome to a SQLite
	// database the RageRequest collector reads back from. Optional: a
	// ServerState built without a configured HistoryDBPath runs with a
	// nil History and simply skips logging.
	History *history.History

	// Shutdown, when set, is invoked under Lock by StopRequest to tear
	// down the listening socket. It runs before Dispatch returns
	// StopResponse, so the listener is closed before the response is
	// written; connections already accepted stay open and still carry it.
	Shutdown func()

	// Notify, when set, is called once per file a Recheck just committed
	// errors for (step 9), broadcasting the change to any connected
	// file-notifier clients. Nil when no notifier side channel is running.
	Notify func(file string)

	// classAttrMemo is the process-global class-attribute memoization
	// cache; cleared before every repopulation in a Recheck.
	classAttrMemo map[string]struct{}
}

// New creates a fresh ServerState from cfg, wiring the Shared Heap,
// Environment, Scheduler, and services together.
func New(cfg config.Config) *ServerState {
	h := heap.New(cfg.HeapCapacityBytes)
	env := environment.New()
	for _, p := range cfg.Protocols {
		env.TypeOrder().RegisterProtocol(p.Name, p.RequiredMethods)
	}
	s := &ServerState{
		Config:        cfg,
		Environment:   env,
		Heap:          h,
		Lookups:       lookup.NewCache(cfg.LookupCacheSize),
		Errors:        make(map[heap.FileHandle][]diag.Error),
		Handles:       make(map[heap.FileHandle]struct{}),
		Scheduler:     scheduler.New(cfg.SchedulerQueueSize, 8),
		Parser:        parsersvc.New(h),
		TypeCheck:     typechecksvc.New(h, env),
		Metrics:       metrics.NewLogSink(),
		classAttrMemo: make(map[string]struct{}),
	}

	if cfg.HistoryDBPath != "" {
		hist, err := history.Open(cfg.HistoryDBPath)
		if err != nil {
			log.Printf("dispatch: failed to open recheck history at %s: %v", cfg.HistoryDBPath, err)
		} else {
			s.History = hist
		}
	}

	return s
}

func (s *ServerState) clearClassAttrMemo() {
	s.classAttrMemo = make(map[string]struct{})
}
