package jobs

import (
	"log/slog"
	"sync"
	"time"

	"relic/internal/relicerr"
)

// subscriberBuffer bounds how far a live subscriber may fall behind before
// it is disconnected. Disconnection preserves the no-gaps guarantee: a
// subscriber either sees every event or stops seeing events at all.
const subscriberBuffer = 256

// Subscription is one observer's view of a job's event stream. C yields the
// full history first, then live events, and is closed after a terminal
// event. Close releases the subscription early.
type Subscription struct {
	C      <-chan StatusEvent
	cancel func()
	once   sync.Once
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

type jobState struct {
	history     []StatusEvent
	subscribers map[int]chan StatusEvent
	nextSubID   int
	result      *Result
	createdAt   time.Time
	terminal    bool
}

// Tracker owns per-job histories, live fan-out, and terminal results. Each
// job's history is mutated only by its owning goroutine but read by any
// number of observers, so everything serializes through one mutex. History
// append and broadcast happen under the same lock acquisition, which gives
// late joiners the exact prefix live subscribers already saw.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[string]*jobState
	logger *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{jobs: make(map[string]*jobState), logger: logger}
}

// Register allocates tracking state for a new job id.
func (t *Tracker) Register(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &jobState{
		subscribers: make(map[int]chan StatusEvent),
		createdAt:   time.Now(),
	}
}

// Publish appends an event to the job's history and fans it out to live
// subscribers. A terminal event closes every subscriber channel. Publishing
// with no live subscribers is not an error; publishing to an unknown job is.
func (t *Tracker) Publish(id string, ev StatusEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	js, ok := t.jobs[id]
	if !ok {
		return relicerr.Newf(relicerr.JobNotFound, "unknown job: %s", id)
	}
	if js.terminal {
		return relicerr.Newf(relicerr.Internal, "publish after terminal event on job %s", id)
	}

	js.history = append(js.history, ev)

	for subID, ch := range js.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber stopped draining; cut it off rather than let it
			// observe a gap later.
			t.logger.Warn("dropping slow status subscriber", "job", id)
			close(ch)
			delete(js.subscribers, subID)
		}
	}

	if ev.Stage.Terminal() {
		js.terminal = true
		for subID, ch := range js.subscribers {
			close(ch)
			delete(js.subscribers, subID)
		}
	}
	return nil
}

// Subscribe returns a stream that replays the job's history so far and then
// yields live events. Subscribing to an already-terminal job yields the full
// history followed by a closed channel.
func (t *Tracker) Subscribe(id string) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	js, ok := t.jobs[id]
	if !ok {
		return nil, relicerr.Newf(relicerr.JobNotFound, "unknown job: %s", id)
	}

	ch := make(chan StatusEvent, len(js.history)+subscriberBuffer)
	for _, ev := range js.history {
		ch <- ev
	}

	if js.terminal {
		close(ch)
		return &Subscription{C: ch, cancel: func() {}}, nil
	}

	subID := js.nextSubID
	js.nextSubID++
	js.subscribers[subID] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if cur, ok := js.subscribers[subID]; ok && cur == ch {
			close(ch)
			delete(js.subscribers, subID)
		}
	}
	return &Subscription{C: ch, cancel: cancel}, nil
}

// SetResult stores the terminal outcome for polling callers.
func (t *Tracker) SetResult(id string, r Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	js, ok := t.jobs[id]
	if !ok {
		return relicerr.Newf(relicerr.JobNotFound, "unknown job: %s", id)
	}
	js.result = &r
	return nil
}

// Result returns the terminal outcome and whether the job has finished. An
// unfinished job yields done=false; an unknown id is an error.
func (t *Tracker) Result(id string) (Result, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	js, ok := t.jobs[id]
	if !ok {
		return Result{}, false, relicerr.Newf(relicerr.JobNotFound, "unknown job: %s", id)
	}
	if js.result == nil {
		return Result{}, false, nil
	}
	return *js.result, true, nil
}

// History returns a copy of the events published so far.
func (t *Tracker) History(id string) ([]StatusEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	js, ok := t.jobs[id]
	if !ok {
		return nil, relicerr.Newf(relicerr.JobNotFound, "unknown job: %s", id)
	}
	return append([]StatusEvent(nil), js.history...), nil
}

// CleanupOld drops tracking state for terminal jobs created before the
// retention window and returns how many were removed. Running jobs are never
// removed regardless of age.
func (t *Tracker) CleanupOld(retention time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	for id, js := range t.jobs {
		if js.terminal && js.createdAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}
