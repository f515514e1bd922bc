package sim

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/catalog"
	mmetrics "hsr-simulator/internal/metrics"
)

// Snapshot is one complete evaluation of the timetable. Snapshots are never
// mutated after publication.
type Snapshot struct {
	State
	Clock      string                   `json:"clock"`
	Positions  map[string]TrainPosition `json:"positions"`
	ComputedAt time.Time                `json:"computed_at"`
}

// Sorted returns the positions ordered by service id.
func (s *Snapshot) Sorted() []TrainPosition {
	out := make([]TrainPosition, 0, len(s.Positions))
	for _, p := range s.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

// Sink receives every published snapshot, in publication order. Consume runs on
// the publishing goroutine and should not block; it must not call back into
// the Simulator's setters.
type Sink interface {
	Consume(*Snapshot)
}

type SinkFunc func(*Snapshot)

func (f SinkFunc) Consume(s *Snapshot) { f(s) }

type Simulator struct {
	catalog       *catalog.Catalog
	tracks        Tracks
	frameInterval time.Duration
	metrics       *mmetrics.Collector

	// emitMu is held from compute through delivery so sinks see snapshots in
	// the order they were stored.
	emitMu sync.Mutex
	mu     sync.Mutex
	state  State
	sinks  []Sink

	snap atomic.Pointer[Snapshot]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSimulator(cat *catalog.Catalog, tracks Tracks, initial State, frameInterval time.Duration, metrics *mmetrics.Collector, sinks ...Sink) *Simulator {
	initial.Time = NormalizeTime(initial.Time)
	s := &Simulator{
		catalog:       cat,
		tracks:        tracks,
		frameInterval: frameInterval,
		metrics:       metrics,
		state:         initial,
		sinks:         sinks,
	}
	if metrics != nil {
		arc := 0
		for _, tr := range tracks {
			if tr.StationArc != nil {
				arc++
			}
		}
		metrics.ArcTracks.Set(float64(arc))
	}
	s.snap.Store(s.compute(initial))
	return s
}

// AddSink registers a consumer for snapshots published from now on.
func (s *Simulator) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// Start launches the tick loop. Each tick advances the clock by the wall time
// since the previous tick.
func (s *Simulator) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.frameInterval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				elapsed := now.Sub(last)
				last = now
				s.Advance(elapsed)
			}
		}
	}()
	log.WithFields(log.Fields{
		"interval": s.frameInterval,
		"services": len(s.catalog.Services),
	}).Info("simulation loop started")
}

func (s *Simulator) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Advance moves the clock forward by elapsed wall time and publishes a fresh
// snapshot. It reports false, publishing nothing, while paused.
func (s *Simulator) Advance(elapsed time.Duration) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !s.state.Playing {
		s.mu.Unlock()
		return false
	}
	s.state = s.state.Tick(elapsed)
	snap, sinks := s.publishLocked()
	s.mu.Unlock()

	emit(snap, sinks)
	return true
}

// SetTime scrubs the clock to minutes since midnight and recomputes immediately.
func (s *Simulator) SetTime(minutes float64) *Snapshot {
	return s.update(func(st *State) { st.Time = NormalizeTime(minutes) })
}

func (s *Simulator) SetPlaying(playing bool) *Snapshot {
	return s.update(func(st *State) { st.Playing = playing })
}

func (s *Simulator) SetSpeed(speed Speed) (*Snapshot, error) {
	if _, err := ParseSpeed(int(speed)); err != nil {
		return nil, err
	}
	return s.update(func(st *State) { st.Speed = speed }), nil
}

func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the latest published snapshot without blocking on the loop.
func (s *Simulator) Snapshot() *Snapshot { return s.snap.Load() }

func (s *Simulator) Position(serviceID string) (TrainPosition, bool) {
	p, ok := s.snap.Load().Positions[serviceID]
	return p, ok
}

func (s *Simulator) Catalog() *catalog.Catalog { return s.catalog }

func (s *Simulator) Tracks() Tracks { return s.tracks }

func (s *Simulator) update(fn func(*State)) *Snapshot {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	snap, sinks := s.publishLocked()
	s.mu.Unlock()

	emit(snap, sinks)
	return snap
}

func (s *Simulator) publishLocked() (*Snapshot, []Sink) {
	snap := s.compute(s.state)
	s.snap.Store(snap)
	return snap, s.sinks
}

func (s *Simulator) compute(st State) *Snapshot {
	start := time.Now()
	positions := ComputeWithTracks(s.catalog.Services, s.tracks, st.Time)
	snap := &Snapshot{
		State:      st,
		Clock:      st.Clock(),
		Positions:  positions,
		ComputedAt: time.Now(),
	}
	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start))
		s.metrics.ObserveState(st.Time, int(st.Speed), st.Playing)
		s.metrics.SetStatusCounts(StatusCounts(positions))
	}
	return snap
}

// StatusCounts tallies positions by status, including zero counts.
func StatusCounts(positions map[string]TrainPosition) map[string]int {
	counts := map[string]int{
		string(StatusWaiting):   0,
		string(StatusRunning):   0,
		string(StatusStopped):   0,
		string(StatusCompleted): 0,
	}
	for _, p := range positions {
		counts[string(p.Status)]++
	}
	return counts
}

func emit(snap *Snapshot, sinks []Sink) {
	for _, sink := range sinks {
		sink.Consume(snap)
	}
}
