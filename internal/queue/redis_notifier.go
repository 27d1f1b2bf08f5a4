package queue

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "vortex:queue:notify:"

// RedisNotifier is a distributed, Redis-backed Notifier that uses
// PUBLISH/SUBSCRIBE to broadcast wakeups across multiple vortexd
// instances. This enables horizontal scaling of the worker pool: when
// ingress accepts a CRUD event for some router on one node, every
// node's idle pump goroutines wake immediately instead of waiting out
// a poll interval, even though the router's own automaton and queue
// only ever live in the memory of whichever node's Pool built it.
type RedisNotifier struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[QueueType][]*redisSub
	closed bool
}

type redisSub struct {
	ch     chan struct{}
	cancel context.CancelFunc
}

// NewRedisNotifier creates a new Redis-backed notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		subs:   make(map[QueueType][]*redisSub),
	}
}

// Notify publishes a wakeup to the Redis channel for the given queue
// type (QueueRouter when some router's automaton just accepted a CRUD
// event, QueueIngress when the broker consumer has backlog of its own).
// Every vortexd instance subscribed to that channel is notified, not
// just the one whose Pool owns the affected router's automaton — a pump
// goroutine wakes, finds HasMoreWork false for routers it doesn't own,
// and goes back to sleep, so the broadcast is wasted work but never
// incorrect.
func (n *RedisNotifier) Notify(ctx context.Context, queue QueueType) error {
	channel := redisChannelPrefix + string(queue)
	return n.client.Publish(ctx, channel, "1").Err()
}

// Subscribe returns a channel that receives a wakeup whenever some
// node's ingress consumer accepts a router event on the given queue
// class. worker.Pool's pump goroutines block on this channel instead of
// polling every automaton on a timer; a background goroutine listens on
// the Redis PubSub channel and forwards notifications to the returned
// channel.
func (n *RedisNotifier) Subscribe(ctx context.Context, queue QueueType) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}

	subCtx, cancel := context.WithCancel(ctx)
	rs := &redisSub{ch: ch, cancel: cancel}
	n.subs[queue] = append(n.subs[queue], rs)
	n.mu.Unlock()

	channel := redisChannelPrefix + string(queue)
	pubsub := n.client.Subscribe(subCtx, channel)

	go func() {
		defer pubsub.Close()
		msgCh := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				n.removeSub(queue, rs)
				return
			case _, ok := <-msgCh:
				if !ok {
					return
				}
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

// Close releases all resources held by the notifier, closing all
// subscriber channels and cancelling background goroutines.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.subs {
		for _, s := range subs {
			s.cancel()
			close(s.ch)
		}
	}
	n.subs = nil
	return nil
}

func (n *RedisNotifier) removeSub(queue QueueType, target *redisSub) {
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
