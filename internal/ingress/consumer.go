// Package ingress consumes CRUD envelopes off a Redis list broker and
// routes them into the worker pool as event.Tag messages.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skyrelay/vortex/internal/event"
	"github.com/skyrelay/vortex/internal/metrics"
)

// Envelope is the wire shape of one queued CRUD event. EventID identifies
// one submission (e.g. one `vortexctl apply` call) in the consumer's log
// line when the pool rejects the event; it is not written to the audit
// trail and plays no role in CalcAction's coalescing, which stays keyed
// purely on CRUD tags.
type Envelope struct {
	EventID    string `json:"event_id"`
	RouterID   string `json:"router_id"`
	TenantID   string `json:"tenant_id"`
	CRUD       string `json:"crud"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

// Enqueuer is the subset of worker.Pool the consumer depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, routerID, tenantID string, tag event.Tag) bool
}

// Config configures the consumer.
type Config struct {
	// ListKey is the Redis list BRPOP'd for envelopes.
	ListKey string
	// Shards is the number of concurrent BRPOP consumer goroutines.
	Shards int
	// BRPopTimeout bounds each BRPOP call so shutdown is checked
	// periodically rather than blocking forever.
	BRPopTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ListKey == "" {
		c.ListKey = "vortex:ingress:crud"
	}
	if c.Shards <= 0 {
		c.Shards = 1
	}
	if c.BRPopTimeout <= 0 {
		c.BRPopTimeout = time.Second
	}
	return c
}

// Consumer runs Config.Shards goroutines, each BRPOP-ing envelopes off
// the configured Redis list and handing valid ones to an Enqueuer.
type Consumer struct {
	cfg    Config
	client *redis.Client
	pool   Enqueuer
	log    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Consumer. It does not start consuming until Start is
// called.
func New(client *redis.Client, pool Enqueuer, cfg Config, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg:    cfg.withDefaults(),
		client: client,
		pool:   pool,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Start launches the consumer's shard goroutines.
func (c *Consumer) Start(ctx context.Context) {
	c.log.Info("starting ingress consumer", "list_key", c.cfg.ListKey, "shards", c.cfg.Shards)
	for i := 0; i < c.cfg.Shards; i++ {
		c.wg.Add(1)
		go c.consume(ctx, i)
	}
}

// Stop signals every shard goroutine to exit and waits for them to drain.
func (c *Consumer) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Consumer) consume(ctx context.Context, shard int) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		result, err := c.client.BRPop(ctx, c.cfg.BRPopTimeout, c.cfg.ListKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("brpop failed", "shard", shard, "error", err)
			select {
			case <-c.stopCh:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		if len(result) < 2 {
			continue
		}
		c.handle(ctx, result[1])
	}
}

func (c *Consumer) handle(ctx context.Context, raw string) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.log.Warn("dropping malformed envelope", "error", err)
		metrics.Global().RecordIngress(false)
		return
	}

	tag := event.Tag(env.CRUD)
	if env.RouterID == "" || !tag.Valid() {
		c.log.Warn("dropping envelope with invalid fields", "router_id", env.RouterID, "crud", env.CRUD)
		metrics.Global().RecordIngress(false)
		return
	}

	accepted := c.pool.Enqueue(ctx, env.RouterID, env.TenantID, tag)
	if !accepted {
		c.log.Debug("event rejected by automaton", "router_id", env.RouterID, "crud", env.CRUD, "event_id", env.EventID)
	}
	metrics.Global().RecordIngress(accepted)
}
