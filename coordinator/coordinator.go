package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// Handler processes one inbound message and returns the reply payload. For
// Request and Delegate kinds the reply is sent back as the correlated
// response; for other kinds it is ignored.
type Handler func(ctx context.Context, msg core.Message) (string, error)

// Options configure the coordinator.
type Options struct {
	// MaxHops is the delegation chain ceiling. A delegation whose hop count
	// would exceed it fails with core.ErrMaxHopsExceeded before anything is
	// sent. Zero means the default of 5.
	MaxHops int
	// Timeout bounds each delegation's wait for a response unless overridden
	// per call. Zero means the default of 30 seconds.
	Timeout time.Duration
	// RetryCount is the number of additional send attempts after a transport
	// failure. Zero means the default of 3; negative disables retries.
	RetryCount int
	// RetryDelay is the pause between attempts. Zero means the default of
	// 250 milliseconds.
	RetryDelay time.Duration
	// Backoff doubles the delay after each failed attempt.
	Backoff bool
	// Log is consulted to mark timed-out requests expired. Nil disables the
	// status update; the router's terminal cache still discards the late
	// response.
	Log core.MessageLog
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// DelegateOptions tune a single delegation.
type DelegateOptions struct {
	// Timeout overrides the coordinator-wide response deadline.
	Timeout time.Duration
	// Parent threads the chain position: the new request's hop count is the
	// parent's plus one. Nil starts a fresh chain at hop 1.
	Parent *core.Message
}

// Coordinator composes router, registry and memory into the delegation,
// broadcast, collaboration and transfer operations.
type Coordinator struct {
	router   core.Router
	registry core.Registry
	memory   core.MemoryStore

	maxHops    int
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
	backoff    bool
	log        core.MessageLog
	logger     logging.Logger
}

// New constructs a Coordinator.
func New(router core.Router, registry core.Registry, memory core.MemoryStore, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		MaxHops:    5,
		Timeout:    30 * time.Second,
		RetryCount: 3,
		RetryDelay: 250 * time.Millisecond,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	} else if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 250 * time.Millisecond
	}
	return &Coordinator{
		router:     router,
		registry:   registry,
		memory:     memory,
		maxHops:    opts.MaxHops,
		timeout:    opts.Timeout,
		retryCount: opts.RetryCount,
		retryDelay: opts.RetryDelay,
		backoff:    opts.Backoff,
		log:        opts.Log,
		logger:     opts.Logger,
	}
}

// Delegate sends a Delegate-kind request from one agent to another and waits
// for the correlated response. The hop ceiling is enforced before anything is
// sent; transport failures are retried with fresh message ids sharing the
// correlation, with retry delays consuming time within the same deadline; a
// missed deadline marks the request expired and returns
// core.ErrDelegationTimeout.
func (c *Coordinator) Delegate(ctx context.Context, sessionID, from, to, payload string, optFns ...func(o *DelegateOptions)) (core.Message, error) {
	var opts DelegateOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	dc := core.DelegationContext{SessionID: sessionID, MaxHops: c.maxHops}
	if opts.Parent != nil {
		dc.Hops = opts.Parent.HopCount
	}
	dc = dc.Next()
	dc.Deadline = time.Now().Add(timeout)
	if dc.Exceeded() {
		return core.Message{}, fmt.Errorf("hop %d over ceiling %d: %w", dc.Hops, dc.MaxHops, core.ErrMaxHopsExceeded)
	}

	msg := core.NewMessage(sessionID, from, to, core.KindDelegate, payload)
	msg.HopCount = dc.Hops

	// park before sending so a fast responder cannot slip past the waiter
	waitCh := c.router.Await(msg.CorrelationID)
	start := time.Now()

	if err := c.sendWithRetry(ctx, &msg, dc); err != nil {
		if errors.Is(err, core.ErrDelegationTimeout) {
			c.expire(msg)
			logging.LogDelegation(c.logger, to, time.Since(start), "timeout")
		} else {
			c.router.Abandon(msg.CorrelationID, core.StatusFailed)
		}
		return core.Message{}, err
	}
	c.registry.IncrementHops(sessionID, from)

	timer := time.NewTimer(time.Until(dc.Deadline))
	defer timer.Stop()

	select {
	case resp := <-waitCh:
		logging.LogDelegation(c.logger, to, time.Since(start), "responded")
		return resp, nil
	case <-timer.C:
		c.expire(msg)
		logging.LogDelegation(c.logger, to, time.Since(start), "timeout")
		return core.Message{}, fmt.Errorf("no response from %s within %s: %w", to, timeout, core.ErrDelegationTimeout)
	case <-ctx.Done():
		c.expire(msg)
		logging.LogDelegation(c.logger, to, time.Since(start), "canceled")
		return core.Message{}, ctx.Err()
	}
}

// sendWithRetry attempts the send, reissuing with a fresh message id on
// transport failure. All attempts share the correlation id; retry delays are
// clamped to the chain deadline and a deadline reached mid-retry surfaces as
// core.ErrDelegationTimeout. Non-transport failures abort immediately.
func (c *Coordinator) sendWithRetry(ctx context.Context, msg *core.Message, dc core.DelegationContext) error {
	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			wait := delay
			if remaining := time.Until(dc.Deadline); remaining < wait {
				wait = remaining
			}
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if dc.Expired() {
				return fmt.Errorf("deadline reached after %d attempt(s) to %s: %w: %w", attempt, msg.To, core.ErrDelegationTimeout, lastErr)
			}
			msg.ID = core.NewID()
			if c.backoff {
				delay *= 2
			}
		}
		_, err := c.router.Send(ctx, *msg)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrQueueFull) {
			return err
		}
		lastErr = err
		c.logger.Warn("delegation attempt failed", "attempt", attempt+1, "to", msg.To, "error", err)
	}
	return fmt.Errorf("%d attempts to %s: %w: %w", c.retryCount+1, msg.To, core.ErrDelegationFailed, lastErr)
}

// expire marks the request expired and seals the correlation so a late
// response is discarded.
func (c *Coordinator) expire(msg core.Message) {
	c.router.Abandon(msg.CorrelationID, core.StatusExpired)
	if c.log != nil {
		if err := c.log.UpdateStatus(msg.ID, core.StatusExpired); err != nil {
			c.logger.Error("failed to mark request expired", "message_id", msg.ID, "error", err)
		}
	}
}

// Respond sends the correlated reply to a previously received message.
func (c *Coordinator) Respond(ctx context.Context, original core.Message, from, payload string) (core.Message, error) {
	resp := original.Response(from, payload)
	if _, err := c.router.Send(ctx, resp); err != nil {
		return core.Message{}, fmt.Errorf("respond to %s: %w", original.From, err)
	}
	return resp, nil
}

// Broadcast fans payload out to every other agent registered in the session
// and returns the number of agents reached. Fire and forget: no responses are
// awaited.
func (c *Coordinator) Broadcast(ctx context.Context, sessionID, from, payload string) (int, error) {
	msg := core.NewMessage(sessionID, from, core.BroadcastRecipient, core.KindBroadcast, payload)
	n, err := c.router.Send(ctx, msg)
	if err != nil {
		return n, fmt.Errorf("broadcast in session %s: %w", sessionID, err)
	}
	return n, nil
}

// Collaborate sends a Collaborate-kind task to each named target and returns
// the ids of the messages that reached a queue. Per-target failures are
// logged and skipped.
func (c *Coordinator) Collaborate(ctx context.Context, sessionID, from string, targets []string, task string) []string {
	ids := make([]string, 0, len(targets))
	for _, target := range targets {
		msg := core.NewMessage(sessionID, from, target, core.KindCollaborate, task)
		if _, err := c.router.Send(ctx, msg); err != nil {
			c.logger.Warn("collaboration invite dropped", "session_id", sessionID, "to", target, "error", err)
			continue
		}
		ids = append(ids, msg.ID)
	}
	return ids
}

// Transfer hands the conversation from one agent to another: the named
// session-scope keys are re-seeded for the new owner, a Delegate-kind
// handover message is sent, and input routing is flipped from the old agent
// to the new one. The handover fails before any state changes when the target
// is unknown.
func (c *Coordinator) Transfer(ctx context.Context, sessionID, from, to string, contextKeys []string) error {
	if _, ok := c.registry.Lookup(sessionID, to); !ok {
		return fmt.Errorf("transfer target %s in session %s: %w", to, sessionID, core.ErrUnknownRecipient)
	}

	for _, key := range contextKeys {
		value, ok := c.memory.Get(core.ScopeSession, sessionID, key)
		if !ok {
			continue
		}
		if err := c.memory.Set(core.ScopeSession, sessionID, key, value, 0); err != nil {
			return fmt.Errorf("re-seed session key %q: %w", key, err)
		}
	}

	msg := core.NewMessage(sessionID, from, to, core.KindDelegate, fmt.Sprintf("conversation transferred from %s", from))
	if _, err := c.router.Send(ctx, msg); err != nil {
		return fmt.Errorf("transfer handover to %s: %w", to, err)
	}

	if err := c.registry.SetActive(sessionID, from, false); err != nil {
		return fmt.Errorf("deactivate %s: %w", from, err)
	}
	if err := c.registry.SetActive(sessionID, to, true); err != nil {
		return fmt.Errorf("activate %s: %w", to, err)
	}
	c.logger.Info("conversation transferred", "session_id", sessionID, "from", from, "to", to, "context_keys", len(contextKeys))
	return nil
}

// Serve runs the agent's inbound loop until ctx is canceled: messages are
// handed to handler one at a time in delivery order, and for Request and
// Delegate kinds the handler's output is sent back as the correlated
// response. Handler errors are logged; the loop keeps going.
func (c *Coordinator) Serve(ctx context.Context, sessionID, agentID string, handler Handler) error {
	log := logging.WithAgent(logging.WithSession(c.logger, sessionID), agentID)
	ch := c.router.Subscribe(sessionID, agentID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			reply, err := handler(ctx, msg)
			if err != nil {
				log.Error("handler failed", "message_id", msg.ID, "kind", msg.Kind, "error", err)
				continue
			}
			if msg.Kind != core.KindRequest && msg.Kind != core.KindDelegate {
				continue
			}
			if _, err := c.Respond(ctx, msg, agentID, reply); err != nil {
				log.Error("response dropped", "message_id", msg.ID, "error", err)
			}
		}
	}
}
