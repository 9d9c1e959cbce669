package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/bloom/internal/garden"
	"github.com/ayusman/bloom/internal/store"
)

// DefaultSnapshotInterval is the minimum spacing between periodic saves.
const DefaultSnapshotInterval = 10 * time.Second

type snapshotJob struct {
	snap    *store.Snapshot
	flowers []store.SnapshotFlower
}

// snapshotSaver writes snapshots on its own goroutine. Its queue holds one
// job; a save requested while another is queued is dropped.
type snapshotSaver struct {
	store *store.Store
	keep  int

	mu     sync.Mutex
	jobs   chan snapshotJob
	closed bool
	done   chan struct{}

	saved   atomic.Uint64
	dropped atomic.Uint64
}

func newSnapshotSaver(s *store.Store, keep int) *snapshotSaver {
	sv := &snapshotSaver{
		store: s,
		keep:  keep,
		jobs:  make(chan snapshotJob, 1),
		done:  make(chan struct{}),
	}
	go sv.run()
	return sv
}

func (s *snapshotSaver) enqueue(job snapshotJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.jobs <- job:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *snapshotSaver) run() {
	defer close(s.done)
	for job := range s.jobs {
		if err := s.save(job.snap, job.flowers); err != nil {
			log.Printf("[Snapshot] save failed: %v", err)
		}
	}
}

func (s *snapshotSaver) save(snap *store.Snapshot, flowers []store.SnapshotFlower) error {
	if err := s.store.Snapshots().Save(snap, flowers); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.saved.Add(1)
	if s.keep > 0 {
		if _, err := s.store.Snapshots().Prune(s.keep); err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
	}
	return nil
}

// close drains queued saves and stops the worker.
func (s *snapshotSaver) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	<-s.done
}

// maybeSnapshotLocked queues a save when the garden changed and the
// interval has passed since the last one.
func (l *Loop) maybeSnapshotLocked(now time.Time) {
	if l.saver == nil || !l.dirty {
		return
	}
	if !l.lastSave.IsZero() && now.Sub(l.lastSave) < l.opts.SnapshotInterval {
		return
	}
	snap, flowers := l.snapshotLocked()
	if l.saver.enqueue(snapshotJob{snap: snap, flowers: flowers}) {
		l.dirty = false
		l.lastSave = now
	}
}

func (l *Loop) snapshotLocked() (*store.Snapshot, []store.SnapshotFlower) {
	g := l.engine.Garden()
	s := l.engine.Settings()
	snap := &store.Snapshot{
		ID:        uuid.NewString(),
		Width:     g.Width,
		Height:    g.Height,
		Theme:     string(s.Theme),
		Species:   string(s.Species),
		CreatedAt: l.opts.Now(),
	}
	return snap, FlowersToStore(g.Flowers)
}

// Restore replaces the garden with the most recent snapshot. It returns how
// many flowers were restored; an empty store restores nothing.
func (l *Loop) Restore() (int, error) {
	if l.opts.Store == nil {
		return 0, nil
	}
	snap, rows, err := l.opts.Store.Snapshots().Latest()
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}

	l.mu.Lock()
	l.engine.Restore(FlowersFromStore(rows))
	l.dirty = false
	l.lastSave = l.opts.Now()
	n := len(l.engine.Garden().Flowers)
	l.mu.Unlock()

	if err := l.opts.Store.Settings().Set(store.SettingLastRestore, snap.ID); err != nil {
		log.Printf("[Snapshot] record restore: %v", err)
	}
	log.Printf("[Snapshot] restored %d flowers from %s", n, snap.CreatedAt.Format(time.RFC3339))
	return n, nil
}

// SaveSnapshot writes the garden now, bypassing the queue.
func (l *Loop) SaveSnapshot() (*store.Snapshot, error) {
	if l.saver == nil {
		return nil, errors.New("no store configured")
	}
	l.mu.Lock()
	snap, flowers := l.snapshotLocked()
	l.dirty = false
	l.lastSave = snap.CreatedAt
	l.mu.Unlock()

	if err := l.saver.save(snap, flowers); err != nil {
		return nil, err
	}
	return snap, nil
}

// FlowersToStore converts garden flowers to snapshot rows.
func FlowersToStore(flowers []garden.Flower) []store.SnapshotFlower {
	rows := make([]store.SnapshotFlower, len(flowers))
	for i, f := range flowers {
		rows[i] = store.SnapshotFlower{
			FlowerID:       f.ID,
			RelX:           f.RelX,
			MaxHeight:      f.MaxHeight,
			CurrentHeight:  f.CurrentHeight,
			BloomProgress:  f.BloomProgress,
			Species:        string(f.Species),
			Color:          garden.ColorHex(f.Color),
			SecondaryColor: garden.ColorHex(f.SecondaryColor),
			PlantedAt:      f.PlantedAt,
		}
		for j, p := range f.Stem {
			rows[i].Stem[j] = [2]float64{p.X, p.Y}
		}
	}
	return rows
}

// FlowersFromStore converts snapshot rows back to garden flowers.
func FlowersFromStore(rows []store.SnapshotFlower) []garden.Flower {
	flowers := make([]garden.Flower, len(rows))
	for i, r := range rows {
		species, err := garden.ParseSpecies(r.Species)
		if err != nil {
			species = garden.SpeciesRandom
		}
		flowers[i] = garden.Flower{
			ID:             r.FlowerID,
			RelX:           r.RelX,
			MaxHeight:      r.MaxHeight,
			CurrentHeight:  r.CurrentHeight,
			BloomProgress:  r.BloomProgress,
			Species:        species,
			Color:          garden.ParseColor(r.Color),
			SecondaryColor: garden.ParseColor(r.SecondaryColor),
			PlantedAt:      r.PlantedAt,
		}
		for j, p := range r.Stem {
			flowers[i].Stem[j] = garden.Point{X: p[0], Y: p[1]}
		}
	}
	return flowers
}
