package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// Options configure the router.
type Options struct {
	// QueueSize bounds each agent's inbound queue. A full queue fails the
	// send with core.ErrQueueFull (a retryable transport failure). Zero
	// means the default of 100.
	QueueSize int
	// TerminalCacheSize bounds the cache of terminal correlation ids used to
	// discard late responses. Zero means the default of 4096.
	TerminalCacheSize int
	// Log receives the audit record of every routed message. Nil disables
	// auditing.
	Log core.MessageLog
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

type queueKey struct{ sessionID, agentID string }

// Router is the in-process core.Router implementation. It resolves
// addressable agents through the registry handed to New; it holds no global
// state of its own.
type Router struct {
	registry  core.Registry
	queueSize int
	log       core.MessageLog
	logger    logging.Logger

	mu       sync.Mutex
	queues   map[queueKey]chan core.Message
	waits    map[string]chan core.Message
	waitMeta map[string]queueKey // correlation id -> requester, for stats
	stats    map[queueKey]*core.AgentStats
	terminal *lru.Cache[string, core.Status]
}

// New constructs a Router resolving recipients against registry.
func New(registry core.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{
		QueueSize:         100,
		TerminalCacheSize: 4096,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.TerminalCacheSize <= 0 {
		opts.TerminalCacheSize = 4096
	}
	terminal, _ := lru.New[string, core.Status](opts.TerminalCacheSize)
	return &Router{
		registry:  registry,
		queueSize: opts.QueueSize,
		log:       opts.Log,
		logger:    opts.Logger,
		queues:    make(map[queueKey]chan core.Message),
		waits:     make(map[string]chan core.Message),
		waitMeta:  make(map[string]queueKey),
		stats:     make(map[queueKey]*core.AgentStats),
		terminal:  terminal,
	}
}

// Send validates, records and queues the message, returning the number of
// queues reached. Unknown recipients fail synchronously with nothing queued.
func (r *Router) Send(ctx context.Context, msg core.Message) (int, error) {
	if msg.Kind == core.KindResponse {
		if delivered, done := r.resolveWait(msg); done {
			return delivered, nil
		}
	}

	if msg.IsBroadcast() {
		return r.fanOut(ctx, msg)
	}

	if _, ok := r.registry.Lookup(msg.SessionID, msg.To); !ok {
		return 0, fmt.Errorf("agent %s in session %s: %w", msg.To, msg.SessionID, core.ErrUnknownRecipient)
	}

	r.noteRequestWait(msg)

	if err := r.enqueue(msg); err != nil {
		msg.Status = core.StatusFailed
		if recErr := r.record(msg); recErr != nil {
			return 0, recErr
		}
		return 0, err
	}
	msg.Status = core.StatusDelivered
	if err := r.record(msg); err != nil {
		return 0, err
	}
	r.count(msg)
	r.logger.Debug("message queued", "message_id", msg.ID, "session_id", msg.SessionID, "from", msg.From, "to", msg.To, "kind", msg.Kind)
	return 1, nil
}

// resolveWait delivers a response directly to a parked requester, or
// discards it when the correlation already reached a terminal status. The
// boolean reports whether the message was consumed.
func (r *Router) resolveWait(msg core.Message) (int, bool) {
	r.mu.Lock()
	ch, waiting := r.waits[msg.CorrelationID]
	if waiting {
		delete(r.waits, msg.CorrelationID)
		delete(r.waitMeta, msg.CorrelationID)
	}
	_, expired := r.terminal.Get(msg.CorrelationID)
	r.mu.Unlock()

	if waiting {
		msg.Status = core.StatusDelivered
		if err := r.record(msg); err != nil {
			r.logger.Error("failed to record response", "message_id", msg.ID, "error", err)
		}
		r.count(msg)
		ch <- msg
		return 1, true
	}
	if expired {
		// idempotent discard: the requester already gave up
		msg.Status = core.StatusExpired
		if err := r.record(msg); err != nil {
			r.logger.Error("failed to record late response", "message_id", msg.ID, "error", err)
		}
		r.logger.Debug("late response discarded", "correlation_id", msg.CorrelationID, "from", msg.From)
		return 0, true
	}
	return 0, false
}

// fanOut queues a separate copy for every agent registered at the instant of
// send, excluding the sender. Per-recipient transport failures are recorded
// and skipped; the send as a whole succeeds with the reached count.
func (r *Router) fanOut(ctx context.Context, msg core.Message) (int, error) {
	bindings := r.registry.List(msg.SessionID)

	var delivered int64
	g, _ := errgroup.WithContext(ctx)
	for _, b := range bindings {
		if b.AgentID == msg.From || !b.Active {
			continue
		}
		cp := msg
		cp.ID = core.NewID()
		cp.To = b.AgentID
		g.Go(func() error {
			if err := r.enqueue(cp); err != nil {
				cp.Status = core.StatusFailed
				if recErr := r.record(cp); recErr != nil {
					return recErr
				}
				r.logger.Warn("broadcast copy dropped", "session_id", cp.SessionID, "to", cp.To, "error", err)
				return nil
			}
			cp.Status = core.StatusDelivered
			if err := r.record(cp); err != nil {
				return err
			}
			r.count(cp)
			atomic.AddInt64(&delivered, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt64(&delivered)), err
	}
	return int(atomic.LoadInt64(&delivered)), nil
}

// Poll returns the next pending message without blocking.
func (r *Router) Poll(sessionID, agentID string) (core.Message, bool) {
	select {
	case msg := <-r.queue(queueKey{sessionID, agentID}):
		return msg, true
	default:
		return core.Message{}, false
	}
}

// Subscribe returns the agent's inbound stream. Repeated calls return the
// same channel, so exactly one consumer should drain it.
func (r *Router) Subscribe(sessionID, agentID string) <-chan core.Message {
	return r.queue(queueKey{sessionID, agentID})
}

// Await registers a wait for the response bearing correlationID.
func (r *Router) Await(correlationID string) <-chan core.Message {
	ch := make(chan core.Message, 1)
	r.mu.Lock()
	r.waits[correlationID] = ch
	r.mu.Unlock()
	return ch
}

// Abandon releases a wait and records its terminal status so a late response
// with the same correlation id is discarded silently.
func (r *Router) Abandon(correlationID string, status core.Status) {
	r.mu.Lock()
	delete(r.waits, correlationID)
	meta, hadMeta := r.waitMeta[correlationID]
	delete(r.waitMeta, correlationID)
	r.terminal.Add(correlationID, status)
	var st *core.AgentStats
	if hadMeta && status == core.StatusExpired {
		st = r.statsFor(meta)
	}
	if st != nil {
		st.Expired++
	}
	r.mu.Unlock()
}

// DropSession releases every queue belonging to the session. In-flight
// waiters are untouched; their owners abandon them on cancellation.
func (r *Router) DropSession(sessionID string) {
	r.mu.Lock()
	for k := range r.queues {
		if k.sessionID == sessionID {
			delete(r.queues, k)
		}
	}
	r.mu.Unlock()
}

// AgentStats returns best-effort outcome counters per agent for the session.
func (r *Router) AgentStats(sessionID string) []core.AgentStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.AgentStats
	for k, st := range r.stats {
		if k.sessionID == sessionID {
			out = append(out, *st)
		}
	}
	return out
}

func (r *Router) queue(k queueKey) chan core.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[k]
	if !ok {
		q = make(chan core.Message, r.queueSize)
		r.queues[k] = q
	}
	return q
}

func (r *Router) enqueue(msg core.Message) error {
	q := r.queue(queueKey{msg.SessionID, msg.To})
	select {
	case q <- msg:
		return nil
	default:
		return fmt.Errorf("agent %s in session %s: %w", msg.To, msg.SessionID, core.ErrQueueFull)
	}
}

func (r *Router) record(msg core.Message) error {
	if r.log == nil {
		return nil
	}
	if err := r.log.Record(msg); err != nil {
		return fmt.Errorf("record message %s: %w", msg.ID, err)
	}
	return nil
}

// noteRequestWait remembers which agent parked on the correlation so expiry
// can be attributed in the stats.
func (r *Router) noteRequestWait(msg core.Message) {
	if msg.Kind != core.KindRequest && msg.Kind != core.KindDelegate {
		return
	}
	r.mu.Lock()
	if _, ok := r.waits[msg.CorrelationID]; ok {
		r.waitMeta[msg.CorrelationID] = queueKey{msg.SessionID, msg.From}
	}
	r.mu.Unlock()
}

func (r *Router) count(msg core.Message) {
	r.mu.Lock()
	sender := r.statsFor(queueKey{msg.SessionID, msg.From})
	sender.Sent++
	if msg.Kind == core.KindResponse {
		sender.Responded++
	}
	recipient := r.statsFor(queueKey{msg.SessionID, msg.To})
	recipient.Served++
	r.mu.Unlock()
}

// statsFor returns the counter row, creating it lazily. Caller holds mu.
func (r *Router) statsFor(k queueKey) *core.AgentStats {
	st, ok := r.stats[k]
	if !ok {
		st = &core.AgentStats{AgentID: k.agentID}
		r.stats[k] = st
	}
	return st
}
