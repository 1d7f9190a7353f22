/*
refresher.go - Periodic background data refresh

PURPOSE:
  Re-fetches the configured states for the current financial year on a
  timer and runs the result through the same reconciliation path requests
  use. Because ingestion is an idempotent upsert, a refresh racing a
  request-triggered backfill is harmless.

DESIGN:
  - One background goroutine with a configurable interval
  - A failing state fetch is logged and skipped; the sweep continues
  - Start/Stop lifecycle for graceful shutdown

SEE ALSO:
  - reconcile/engine.go: the shared merge path
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gramstat/nrega-insights/nrega"
	"github.com/gramstat/nrega-insights/reconcile"
	"github.com/gramstat/nrega-insights/resolver"
)

// Refresher periodically refreshes a fixed set of states.
type Refresher struct {
	Source   resolver.Source
	Engine   *reconcile.Engine
	States   []string
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefresher creates a refresher for the given states.
func NewRefresher(source resolver.Source, engine *reconcile.Engine, states []string, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Refresher{
		Source:   source,
		Engine:   engine,
		States:   states,
		Interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the refresh loop. No-op when no states are configured.
func (rf *Refresher) Start() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if len(rf.States) == 0 {
		log.Println("[refresher] no states configured, not starting")
		return
	}

	rf.ticker = time.NewTicker(rf.Interval)
	rf.wg.Add(1)
	go rf.run()

	log.Printf("[refresher] started, interval %v, states %v", rf.Interval, rf.States)
}

// Stop stops the refresh loop and waits for an in-flight sweep. Calling
// it again after that is a no-op.
func (rf *Refresher) Stop() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.ticker != nil {
		rf.ticker.Stop()
		rf.ticker = nil
		close(rf.stop)
		rf.wg.Wait()
		log.Println("[refresher] stopped")
	}
}

func (rf *Refresher) run() {
	defer rf.wg.Done()

	// Run immediately on start, then on the ticker.
	rf.sweep()
	for {
		select {
		case <-rf.stop:
			return
		case <-rf.ticker.C:
			rf.sweep()
		}
	}
}

func (rf *Refresher) sweep() {
	year := nrega.CurrentFinYear(time.Now())
	for _, state := range rf.States {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		records, err := rf.Source.FetchRecords(ctx, state, year, "")
		if err != nil {
			cancel()
			log.Printf("[refresher] fetch failed for %s/%s: %v", state, year, err)
			continue
		}
		if len(records) == 0 {
			cancel()
			continue
		}
		if _, err := rf.Engine.Ingest(ctx, records); err != nil {
			log.Printf("[refresher] ingest failed for %s/%s: %v", state, year, err)
		}
		cancel()
	}
}
