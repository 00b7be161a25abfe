package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// lossAction marks the synthetic entry written when buffered entries
// had to be dropped under audit pressure.
const lossAction = "audit-loss"

// Sink accepts audit entries through a bounded queue and flushes them
// to the repository in the background. Record never blocks: when the
// queue is full the oldest unflushed entry is dropped to make room, and
// the drop itself is materialised as a distinct audit-loss entry on the
// next flush. Entries retained while the store is unavailable are held
// to the same bound. Dispatch is never throttled by audit pressure.
type Sink struct {
	repo          Repository
	queue         chan Entry
	flushInterval time.Duration
	logger        Logger

	dropped atomic.Int64 // drops since the last loss entry was written

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	closed   atomic.Bool
}

// NewSink creates an audit sink with the given buffer size and flush
// interval. Start must be called before entries are flushed.
func NewSink(repo Repository, bufferSize int, flushInterval time.Duration) *Sink {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if flushInterval <= 0 {
		flushInterval = 200 * time.Millisecond
	}
	return &Sink{
		repo:          repo,
		queue:         make(chan Entry, bufferSize),
		flushInterval: flushInterval,
		logger:        noopLogger{},
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// SetLogger sets the logger for the sink.
func (s *Sink) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the background flusher.
func (s *Sink) Start() {
	go s.run()
}

// Stop drains the queue, flushes what it can, and shuts the sink down.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
	})
	<-s.doneCh
}

// Record queues an entry without blocking. A full queue drops the
// oldest unflushed entry; the loss is counted and surfaced as an
// audit-loss entry by the flusher.
func (s *Sink) Record(entry Entry) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	if entry.ID == "" {
		entry.ID = NewEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	select {
	case s.queue <- entry:
		return
	default:
	}

	// Queue saturated: drop the oldest entry to make room.
	select {
	case <-s.queue:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.queue <- entry:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of entries lost to audit pressure since
// the last loss entry was flushed.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Sink) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	var backlog []Entry
	for {
		select {
		case e := <-s.queue:
			backlog = s.capBacklog(append(backlog, e))
			if len(backlog) >= cap(s.queue)/2 {
				backlog = s.flush(backlog)
			}
		case <-ticker.C:
			backlog = s.flush(backlog)
		case <-s.stopCh:
			backlog = append(backlog, s.drain()...)
			s.flush(backlog)
			return
		}
	}
}

// capBacklog bounds the entries retained across failed flushes to the
// queue capacity, dropping the oldest past the cap. Without this a
// prolonged store outage would accumulate entries without limit, since
// the flusher keeps the queue itself from ever saturating. The drops
// are counted so they surface through the next audit-loss entry.
func (s *Sink) capBacklog(backlog []Entry) []Entry {
	limit := cap(s.queue)
	if len(backlog) <= limit {
		return backlog
	}
	excess := len(backlog) - limit
	s.dropped.Add(int64(excess))
	n := copy(backlog, backlog[excess:])
	return backlog[:n]
}

// drain empties the queue without blocking.
func (s *Sink) drain() []Entry {
	var out []Entry
	for {
		select {
		case e := <-s.queue:
			out = append(out, e)
		default:
			return out
		}
	}
}

// flush appends the backlog to the repository, returning whatever could
// not be written so it is retried on the next tick. A transiently
// unavailable store loses nothing while the retained backlog stays
// within the queue capacity.
func (s *Sink) flush(backlog []Entry) []Entry {
	if n := s.dropped.Swap(0); n > 0 {
		backlog = append(backlog, Entry{
			ID:          NewEntryID(),
			CommandID:   lossAction,
			DeviceID:    lossAction,
			Action:      lossAction,
			Priority:    "routine",
			Requester:   "audit-sink",
			Arbitration: "accepted",
			Outcome:     lossAction,
			ErrorCode:   "audit_loss",
			SubmittedAt: time.Now().UTC(),
			Details:     map[string]any{"dropped": n},
			CreatedAt:   time.Now().UTC(),
		})
		s.logger.Warn("audit entries dropped under pressure", "count", n)
	}

	for i := range backlog {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.repo.Append(ctx, &backlog[i])
		cancel()
		if err != nil {
			s.logger.Warn("audit flush failed, retaining backlog",
				"retained", len(backlog)-i, "error", err)
			return backlog[i:]
		}
	}
	return nil
}
