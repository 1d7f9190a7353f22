// Package memory provides an in-memory nrega.Store for testing/dev.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gramstat/nrega-insights/nrega"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps everything in maps guarded by one mutex. IngestTx snapshots
// the maps and restores them on error, so a failing batch leaves no trace,
// matching the SQLite store's rollback semantics.
type Store struct {
	mu        sync.RWMutex
	states    map[string]nrega.State    // by code
	districts map[string]nrega.District // by code
	finYears  map[string]nrega.FinYear  // by label
	records   map[recordKey]*nrega.PerformanceRecord
	extended  map[int64]nrega.ExtendedMetrics
	nextID    int64
}

type recordKey struct {
	District string
	FinYear  string
	Month    string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		states:    make(map[string]nrega.State),
		districts: make(map[string]nrega.District),
		finYears:  make(map[string]nrega.FinYear),
		records:   make(map[recordKey]*nrega.PerformanceRecord),
		extended:  make(map[int64]nrega.ExtendedMetrics),
		nextID:    1,
	}
}

func (s *Store) Close() error { return nil }

// =============================================================================
// READ SIDE
// =============================================================================

func (s *Store) GetStateByName(_ context.Context, name string) (*nrega.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.states {
		if strings.EqualFold(st.Name, name) {
			out := st
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListStates(_ context.Context) ([]nrega.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]nrega.State, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states, nil
}

func (s *Store) GetDistrictByName(_ context.Context, stateCode, name string) (*nrega.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.districts {
		if d.StateCode == stateCode && strings.EqualFold(d.Name, name) {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListDistricts(_ context.Context, stateCode string) ([]nrega.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var districts []nrega.District
	for _, d := range s.districts {
		if d.StateCode == stateCode {
			districts = append(districts, d)
		}
	}
	sort.Slice(districts, func(i, j int) bool { return districts[i].Name < districts[j].Name })
	return districts, nil
}

func (s *Store) ListFinYears(_ context.Context) ([]nrega.FinYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	years := make([]nrega.FinYear, 0, len(s.finYears))
	for _, y := range s.finYears {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartYear > years[j].StartYear })
	return years, nil
}

func (s *Store) QueryRecords(_ context.Context, q nrega.RecordQuery) ([]nrega.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []nrega.PerformanceRecord
	for _, rec := range s.records {
		if rec.StateCode != q.StateCode {
			continue
		}
		if q.DistrictCode != "" && rec.DistrictCode != q.DistrictCode {
			continue
		}
		if q.FinYear != "" && rec.FinYear != q.FinYear {
			continue
		}
		if q.Month != "" && !strings.EqualFold(rec.Month, q.Month) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := nrega.MonthRank(out[i].Month), nrega.MonthRank(out[j].Month)
		if ri != rj {
			return ri > rj
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) GetExtendedMetrics(_ context.Context, recordID int64) (*nrega.ExtendedMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if em, ok := s.extended[recordID]; ok {
		return &em, nil
	}
	return nil, nil
}

// =============================================================================
// WRITE SIDE
// =============================================================================

// IngestTx runs fn against a snapshot-backed transaction view. On error the
// snapshot is restored; partial ingestion is never observable.
func (s *Store) IngestTx(_ context.Context, fn func(tx nrega.IngestTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&ingestTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	states    map[string]nrega.State
	districts map[string]nrega.District
	finYears  map[string]nrega.FinYear
	records   map[recordKey]*nrega.PerformanceRecord
	extended  map[int64]nrega.ExtendedMetrics
	nextID    int64
}

func (s *Store) snapshot() snapshotState {
	snap := snapshotState{
		states:    make(map[string]nrega.State, len(s.states)),
		districts: make(map[string]nrega.District, len(s.districts)),
		finYears:  make(map[string]nrega.FinYear, len(s.finYears)),
		records:   make(map[recordKey]*nrega.PerformanceRecord, len(s.records)),
		extended:  make(map[int64]nrega.ExtendedMetrics, len(s.extended)),
		nextID:    s.nextID,
	}
	for k, v := range s.states {
		snap.states[k] = v
	}
	for k, v := range s.districts {
		snap.districts[k] = v
	}
	for k, v := range s.finYears {
		snap.finYears[k] = v
	}
	for k, v := range s.records {
		rec := *v
		snap.records[k] = &rec
	}
	for k, v := range s.extended {
		snap.extended[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshotState) {
	s.states = snap.states
	s.districts = snap.districts
	s.finYears = snap.finYears
	s.records = snap.records
	s.extended = snap.extended
	s.nextID = snap.nextID
}

type ingestTx struct {
	store *Store
}

func (t *ingestTx) UpsertState(state nrega.State) error {
	t.store.states[state.Code] = state
	return nil
}

func (t *ingestTx) UpsertDistrict(district nrega.District) error {
	t.store.districts[district.Code] = district
	return nil
}

func (t *ingestTx) UpsertFinYear(year nrega.FinYear) error {
	if _, exists := t.store.finYears[year.Label]; !exists {
		t.store.finYears[year.Label] = year
	}
	return nil
}

func (t *ingestTx) UpsertRecord(rec *nrega.PerformanceRecord) error {
	key := recordKey{District: rec.DistrictCode, FinYear: rec.FinYear, Month: rec.Month}
	now := time.Now().UTC()

	if existing, ok := t.store.records[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = now
	} else {
		rec.ID = t.store.nextID
		t.store.nextID++
		rec.CreatedAt = now
		rec.UpdatedAt = now
	}
	stored := *rec
	t.store.records[key] = &stored
	return nil
}

func (t *ingestTx) InsertExtendedMetrics(em nrega.ExtendedMetrics) error {
	if _, exists := t.store.extended[em.RecordID]; exists {
		return nil
	}
	t.store.extended[em.RecordID] = em
	return nil
}

// RecordCount reports the number of stored performance records. Test helper.
func (s *Store) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ExtendedCount reports the number of extension rows. Test helper.
func (s *Store) ExtendedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.extended)
}
