package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisListPrefix = "vortex:queue:list:"

// RedisListNotifier is a distributed, Redis-backed Notifier that uses
// LPUSH/BRPOP (push-pull pattern) instead of PUBLISH/SUBSCRIBE, trading
// RedisNotifier's broadcast-to-every-node semantics for single-consumer
// semantics: exactly one node's pump goroutine wakes per signal, which
// only matters when the worker pool is sharded (each node owns a
// disjoint subset of router automatons) rather than mirrored.
//
// Advantages over pure Pub/Sub:
//   - No message loss: Redis lists persist wakeups even when every pump
//     goroutine across every node is momentarily busy draining other
//     routers.
//   - Natural load balancing: BRPOP delivers each wakeup to exactly one
//     consumer, distributing newly-arrived router events evenly across
//     multiple vortexd instances instead of waking every node for work
//     only one of them owns.
//   - Backpressure-friendly: wakeups queue up in Redis rather than being
//     dropped if ingress briefly outpaces every node's pump goroutines.
//
// Each subscriber goroutine blocks on BRPOP with a short timeout, which provides
// near-zero latency delivery while periodically allowing context cancellation checks.
type RedisListNotifier struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[QueueType][]*redisListSub
	closed bool
}

type redisListSub struct {
	ch     chan struct{}
	cancel context.CancelFunc
}

// NewRedisListNotifier creates a new Redis list-backed notifier.
func NewRedisListNotifier(client *redis.Client) *RedisListNotifier {
	return &RedisListNotifier{
		client: client,
		subs:   make(map[QueueType][]*redisListSub),
	}
}

// Notify pushes a wakeup to the Redis list for the given queue class
// (QueueRouter for a router automaton's queue, QueueIngress for the
// broker consumer's own backlog). Exactly one subscriber's BRPOP
// receives each signal, so exactly one node's pump goroutine wakes to
// go check which automatons actually have pending work.
func (n *RedisListNotifier) Notify(ctx context.Context, queue QueueType) error {
	key := redisListPrefix + string(queue)
	return n.client.LPush(ctx, key, "1").Err()
}

// Subscribe returns a channel that receives a wakeup when a router event
// (or ingress backlog signal) lands on the given queue class and this
// node's BRPOP happens to win it. A background goroutine uses BRPOP to
// block-wait for signals from the Redis list.
func (n *RedisListNotifier) Subscribe(ctx context.Context, queue QueueType) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}

	subCtx, cancel := context.WithCancel(ctx)
	rs := &redisListSub{ch: ch, cancel: cancel}
	n.subs[queue] = append(n.subs[queue], rs)
	n.mu.Unlock()

	key := redisListPrefix + string(queue)

	go func() {
		defer func() {
			n.removeListSub(queue, rs)
			select {
			case <-ch:
			default:
			}
			close(ch)
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			default:
			}

			// BRPOP with a 1-second timeout to allow periodic context checks.
			result, err := n.client.BRPop(subCtx, 1*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					// Timeout with no data — loop back and check context
					continue
				}
				if subCtx.Err() != nil {
					return
				}
				// Transient Redis error — back off briefly, then retry
				select {
				case <-subCtx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}

			if len(result) >= 2 {
				select {
				case ch <- struct{}{}:
				default:
					// Non-blocking: subscriber already has a pending notification
				}
			}
		}
	}()

	return ch
}

// Close releases all resources held by the notifier, cancelling all
// background goroutines which will close their subscriber channels.
func (n *RedisListNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.subs {
		for _, s := range subs {
			s.cancel()
		}
	}
	n.subs = nil
	return nil
}

func (n *RedisListNotifier) removeListSub(queue QueueType, target *redisListSub) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subs[queue]
	for i, s := range subs {
		if s == target {
			n.subs[queue] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
