package reflection

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/model"
)

// InsightKey is the bot-scope memory key holding an agent's latest insight.
const InsightKey = "last_insight"

// Options configure the collector.
type Options struct {
	// Interval between collection cycles. Zero means the default of 10
	// minutes.
	Interval time.Duration
	// Backend, when set, rewrites the raw outcome counters into a prose
	// assessment. Backend failures fall back to the raw counters.
	Backend model.Backend
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Collector samples agent outcomes and stores reflection insights.
type Collector struct {
	registry core.Registry
	stats    core.StatsSource
	memory   core.MemoryStore

	interval time.Duration
	backend  model.Backend
	logger   logging.Logger
}

// New constructs a Collector sampling the given sources.
func New(registry core.Registry, stats core.StatsSource, memory core.MemoryStore, optFns ...func(o *Options)) *Collector {
	opts := Options{
		Interval: 10 * time.Minute,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	return &Collector{
		registry: registry,
		stats:    stats,
		memory:   memory,
		interval: opts.Interval,
		backend:  opts.Backend,
		logger:   opts.Logger,
	}
}

// Run collects on every tick until ctx is canceled. Cycle failures are logged
// and do not stop the loop.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.CollectOnce(ctx); err != nil {
				c.logger.Error("reflection cycle failed", "error", err)
			}
		}
	}
}

// CollectOnce runs one collection cycle over every session with bindings.
func (c *Collector) CollectOnce(ctx context.Context) error {
	for _, sessionID := range c.registry.Sessions() {
		stats := c.stats.AgentStats(sessionID)
		if len(stats) == 0 {
			continue
		}
		var summaries []string
		for _, st := range stats {
			insight := c.insightFor(ctx, sessionID, st)
			if err := c.memory.Set(core.ScopeBot, st.AgentID, InsightKey, insight, 0); err != nil {
				return fmt.Errorf("store insight for %s: %w", st.AgentID, err)
			}
			summaries = append(summaries, fmt.Sprintf("%s: %s", st.AgentID, insight))
		}
		// the session id owns the reflection episodes; see the package doc
		for _, s := range summaries {
			if err := c.memory.AppendEpisode(sessionID, s); err != nil {
				return fmt.Errorf("append episode for session %s: %w", sessionID, err)
			}
		}
		c.logger.Debug("reflection cycle completed", "session_id", sessionID, "agents", len(stats))
	}
	return nil
}

// insightFor renders one agent's outcomes, through the model backend when one
// is attached.
func (c *Collector) insightFor(ctx context.Context, sessionID string, st core.AgentStats) string {
	raw := fmt.Sprintf("session %s: sent=%d served=%d responded=%d expired=%d",
		sessionID, st.Sent, st.Served, st.Responded, st.Expired)
	if c.backend == nil {
		return raw
	}
	prompt := fmt.Sprintf(
		"Analyze the performance of agent %q given these conversation outcomes (%s). "+
			"Reply with one short insight and one suggested improvement.", st.AgentID, raw)
	text, err := c.backend.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("insight generation failed, storing raw counters", "agent_id", st.AgentID, "error", err)
		return raw
	}
	return text
}
