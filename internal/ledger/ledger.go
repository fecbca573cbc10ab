package ledger

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Workers      int
	QueueSize    int
	MaxPending   int
	WriteTimeout time.Duration
	DrainTimeout time.Duration
	// OnDone is called after every write attempt, from the shard goroutine.
	OnDone func(Event, error)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxPending <= 0 {
		o.MaxPending = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 10 * time.Second
	}
	return o
}

// Ledger applies lifecycle events to a Store off the membership path.
// Events of one room always land on the same shard and are written in submission order.
// A failed write stays queued for its room and is retried before the room's next event.
type Ledger struct {
	store   Store
	opts    Options
	metrics *metrics.Metrics
	shards  []chan Event

	// mu guards stopped; Submit holds it across the enqueue.
	mu      sync.RWMutex
	stopped bool
}

func New(store Store, opts Options, m *metrics.Metrics) *Ledger {
	opts = opts.withDefaults()
	l := &Ledger{store: store, opts: opts, metrics: m, shards: make([]chan Event, opts.Workers)}
	for i := range l.shards {
		l.shards[i] = make(chan Event, opts.QueueSize)
	}
	return l
}

func (l *Ledger) shard(room domain.RoomID) chan Event {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Submit queues ev without blocking. It reports false when the event was dropped.
func (l *Ledger) Submit(ev Event) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		log.Warn().Str("module", "ledger").Str("room", string(ev.Room)).Stringer("kind", ev.Kind).Msg("ledger stopped, event dropped")
		return false
	}
	select {
	case l.shard(ev.Room) <- ev:
		return true
	default:
		l.metrics.RecordLedgerQueueDrop()
		log.Error().Str("module", "ledger").Str("room", string(ev.Room)).Str("record", string(ev.Record)).
			Stringer("kind", ev.Kind).Msg("ledger queue full, event dropped")
		return false
	}
}

// Run processes events until ctx is done, then drains the queues and retries what is pending.
func (l *Ledger) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range l.shards {
		g.Go(func() error {
			l.work(gctx, i, in)
			return nil
		})
	}
	err := g.Wait()
	log.Info().Str("module", "ledger").Msg("ledger stopped")
	return err
}

// CloseStale ends records left open by a previous process. Call before accepting connections.
func (l *Ledger) CloseStale(ctx context.Context, at time.Time) (int64, error) {
	n, err := l.store.CloseStale(ctx, at)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Warn().Str("module", "ledger").Int64("closed", n).Msg("closed stale sessions")
	}
	return n, nil
}

func (l *Ledger) work(ctx context.Context, shard int, in chan Event) {
	pending := make(map[domain.RoomID][]Event)
	for {
		select {
		case <-ctx.Done():
			l.stop()
			l.drain(shard, in, pending)
			return
		case ev := <-in:
			l.apply(ctx, pending, ev)
		}
	}
}

// stop refuses further events. Once it returns nothing more can reach any shard queue.
func (l *Ledger) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

func (l *Ledger) apply(ctx context.Context, pending map[domain.RoomID][]Event, ev Event) {
	before := len(pending[ev.Room])
	q := l.flush(ctx, append(pending[ev.Room], ev))
	if over := len(q) - l.opts.MaxPending; over > 0 {
		for _, lost := range q[:over] {
			log.Error().Str("module", "ledger").Str("room", string(lost.Room)).Str("record", string(lost.Record)).
				Stringer("kind", lost.Kind).Msg("pending limit reached, event discarded")
		}
		q = q[over:]
	}
	if len(q) == 0 {
		delete(pending, ev.Room)
	} else {
		pending[ev.Room] = q
	}
	l.metrics.AddLedgerPending(len(q) - before)
}

// flush writes q in order and returns the unwritten tail.
func (l *Ledger) flush(ctx context.Context, q []Event) []Event {
	for len(q) > 0 {
		err := l.write(ctx, q[0])
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return q
		}
		q = q[1:]
	}
	return nil
}

func (l *Ledger) drain(shard int, in chan Event, pending map[domain.RoomID][]Event) {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.DrainTimeout)
	defer cancel()
	for drained := false; !drained; {
		select {
		case ev := <-in:
			l.apply(ctx, pending, ev)
		default:
			drained = true
		}
	}
	for room, q := range pending {
		if rest := l.flush(ctx, q); len(rest) > 0 {
			log.Error().Str("module", "ledger").Int("shard", shard).Str("room", string(room)).
				Int("events", len(rest)).Msg("unwritten events lost on shutdown")
		}
	}
}

func (l *Ledger) write(parent context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(parent, l.opts.WriteTimeout)
	defer cancel()

	var err error
	switch ev.Kind {
	case KindOpen:
		err = l.store.OpenSession(ctx, domain.SessionRecord{
			ID:           ev.Record,
			RoomID:       ev.Room,
			CandidateID:  ev.Refs.CandidateID,
			JobID:        ev.Refs.JobID,
			StartTime:    ev.At,
			Participants: []domain.ParticipantEntry{ev.Participant},
		})
	case KindAppend:
		err = l.store.AppendParticipant(ctx, ev.Room, ev.Record, ev.Participant)
	case KindLeft:
		err = l.store.MarkLeft(ctx, ev.Room, ev.Record, ev.Participant.ConnID, ev.At)
	case KindClose:
		err = l.store.CloseSession(ctx, ev.Room, ev.Record, ev.Participant.ConnID, ev.At)
	default:
		err = errors.New("unknown ledger event kind")
	}

	l.metrics.RecordLedgerWrite(ev.Kind.String(), err)
	logger := log.With().Str("module", "ledger").Str("room", string(ev.Room)).
		Str("record", string(ev.Record)).Stringer("kind", ev.Kind).Logger()
	switch {
	case err == nil:
		logger.Debug().Msg("ledger write")
	case errors.Is(err, domain.ErrRecordNotFound):
		logger.Warn().Err(err).Msg("ledger write skipped")
	default:
		logger.Error().Err(err).Msg("ledger write failed")
	}
	if l.opts.OnDone != nil {
		l.opts.OnDone(ev, err)
	}
	return err
}
