package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis implements Broker over Redis Pub/Sub so that any replica serving a
// websocket sees events from the replica running the experiment.
type Redis struct {
	rdb *redis.Client
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

func NewRedis(url string, log *slog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{rdb: redis.NewClient(opt), log: log, subs: map[chan Event]*redis.PubSub{}}, nil
}

func (b *Redis) Subscribe(runID string) chan Event {
	ch := make(chan Event, 32)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, chanName(runID))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", "run", runID, "err", err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn("bad progress payload", "run", runID, "err", err)
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the underlying PubSub; the forwarding goroutine then
// closes ch.
func (b *Redis) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *Redis) Publish(runID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warn("progress event not encodable", "run", runID, "err", err)
		return
	}
	if err := b.rdb.Publish(ctx, chanName(runID), data).Err(); err != nil {
		b.log.Warn("redis publish failed", "run", runID, "err", err)
	}
}

func (b *Redis) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *Redis) Close() error { return b.rdb.Close() }

func chanName(runID string) string { return "run:" + runID }
