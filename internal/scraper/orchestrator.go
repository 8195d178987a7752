package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleEvent is published after every orchestration cycle.
type CycleEvent struct {
	RunID      string            `json:"run_id"`
	Trigger    string            `json:"trigger"`
	Parallel   bool              `json:"parallel"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	Sources    []CycleEventEntry `json:"sources"`
}

// CycleEventEntry summarizes one source's outcome within a cycle.
type CycleEventEntry struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	TotalScraped int    `json:"total_scraped"`
	ErrorCount   int    `json:"error_count"`
}

// Orchestrator owns the registered engines, runs them sequentially or in
// parallel, and maintains plus persists per-source run status. A single
// in-flight gate makes overlapping cycles a logged no-op.
type Orchestrator struct {
	mu       sync.Mutex
	engines  map[string]*Engine
	order    []string
	status   map[string]*RunStatus
	running  bool
	statuses StatusStore
	events   Publisher
	topic    string
	clock    Clock
	logger   *zap.Logger
}

// NewOrchestrator registers the given engines. Status rows start idle with
// zero totals, one per engine. Publisher and topic may be empty when cycle
// events are not wanted.
func NewOrchestrator(
	engines []*Engine,
	statuses StatusStore,
	events Publisher,
	topic string,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		engines:  make(map[string]*Engine, len(engines)),
		status:   make(map[string]*RunStatus, len(engines)),
		statuses: statuses,
		events:   events,
		topic:    topic,
		clock:    clock,
		logger:   logger,
	}
	for _, e := range engines {
		name := e.Source().Name
		o.engines[name] = e
		o.order = append(o.order, name)
		o.status[name] = &RunStatus{Name: name, State: RunStateIdle, Errors: []string{}}
	}
	return o
}

// Knows reports whether a source name is registered.
func (o *Orchestrator) Knows(name string) bool {
	_, ok := o.engines[name]
	return ok
}

// IsRunning reports whether a cycle is in flight.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// GetStatus returns a point-in-time snapshot of every source's status, in
// registration order. It does not await any in-flight run.
func (o *Orchestrator) GetStatus() []RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]RunStatus, 0, len(o.order))
	for _, name := range o.order {
		st := o.status[name]
		cp := *st
		cp.Errors = append([]string(nil), st.Errors...)
		out = append(out, cp)
	}
	return out
}

// RunAll runs every registered source, sequentially or concurrently. In
// parallel mode all sources settle before the cycle finishes; one source's
// failure never cancels the others. A cycle already in flight makes this a
// logged no-op. The returned error aggregates failed sources.
func (o *Orchestrator) RunAll(ctx context.Context, parallel bool) error {
	if !o.begin() {
		o.logger.Warn("orchestration cycle already in progress, ignoring run request")
		return nil
	}
	defer o.finish()

	runID := uuid.NewString()
	started := o.clock.Now()
	o.logger.Info("orchestration cycle starting",
		zap.String("run_id", runID),
		zap.Bool("parallel", parallel),
		zap.Int("sources", len(o.order)),
	)

	results := make(map[string]Result, len(o.order))
	if parallel {
		var wg sync.WaitGroup
		var resMu sync.Mutex
		for _, name := range o.order {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				res := o.runOne(ctx, runID, name)
				resMu.Lock()
				results[name] = res
				resMu.Unlock()
			}(name)
		}
		wg.Wait()
	} else {
		for _, name := range o.order {
			results[name] = o.runOne(ctx, runID, name)
		}
	}

	o.persistStatuses(ctx)
	o.publishCycle(ctx, runID, "all", parallel, started, results)
	return o.cycleError(results)
}

// RunSpecific runs exactly one named source. An unknown name is a
// configuration error, returned immediately. Overlap with an in-flight
// cycle is a logged no-op.
func (o *Orchestrator) RunSpecific(ctx context.Context, name string) error {
	if _, ok := o.engines[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if !o.begin() {
		o.logger.Warn("orchestration cycle already in progress, ignoring run request",
			zap.String("source", name))
		return nil
	}
	defer o.finish()

	runID := uuid.NewString()
	started := o.clock.Now()
	results := map[string]Result{name: o.runOne(ctx, runID, name)}

	o.persistStatuses(ctx)
	o.publishCycle(ctx, runID, name, false, started, results)
	return o.cycleError(results)
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) runOne(ctx context.Context, runID, name string) Result {
	engine := o.engines[name]

	o.mu.Lock()
	o.status[name].State = RunStateRunning
	o.mu.Unlock()

	res := engine.Scrape(ctx, runID)

	o.mu.Lock()
	st := o.status[name]
	last := res.EndTime
	st.LastRun = &last
	st.TotalScraped += int64(res.TotalScraped)
	st.Errors = append([]string(nil), res.Errors...)
	if res.Success {
		st.State = RunStateIdle
	} else {
		st.State = RunStateFailed
	}
	o.mu.Unlock()

	o.logger.Info("source run finished",
		zap.String("run_id", runID),
		zap.String("source", name),
		zap.Bool("success", res.Success),
		zap.Int("scraped", res.TotalScraped),
		zap.Int("errors", len(res.Errors)),
	)
	return res
}

// persistStatuses upserts every source's status after a cycle, regardless
// of outcome, so operators always see the latest attempt. Store errors are
// logged, never fatal to the cycle.
func (o *Orchestrator) persistStatuses(ctx context.Context) {
	if o.statuses == nil {
		return
	}
	for _, st := range o.GetStatus() {
		if err := o.statuses.UpsertStatus(ctx, st); err != nil {
			o.logger.Error("persist run status failed",
				zap.String("source", st.Name),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) publishCycle(
	ctx context.Context,
	runID, trigger string,
	parallel bool,
	started time.Time,
	results map[string]Result,
) {
	if o.events == nil || o.topic == "" {
		return
	}
	event := CycleEvent{
		RunID:      runID,
		Trigger:    trigger,
		Parallel:   parallel,
		StartedAt:  started.Format(time.RFC3339),
		FinishedAt: o.clock.Now().Format(time.RFC3339),
	}
	for _, name := range o.order {
		res, ok := results[name]
		if !ok {
			continue
		}
		status := "ok"
		if !res.Success {
			status = "failed"
		}
		event.Sources = append(event.Sources, CycleEventEntry{
			Name:         name,
			Status:       status,
			TotalScraped: res.TotalScraped,
			ErrorCount:   len(res.Errors),
		})
	}
	if _, err := o.events.Publish(ctx, o.topic, event); err != nil {
		o.logger.Error("publish cycle event failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (o *Orchestrator) cycleError(results map[string]Result) error {
	var failed []string
	for _, name := range o.order {
		if res, ok := results[name]; ok && !res.Success {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("sources failed: %s", strings.Join(failed, ", "))
}
