package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Channel name for the cross-instance profile-changed signal.
const channelProfileChanged = "auth.profile.changed"

// Redis broadcasts over pub/sub so every instance (and every connected
// client session) observes profile mutations made elsewhere.
type Redis struct {
	client    *redis.Client
	logger    *slog.Logger
	mu        sync.RWMutex
	listeners []func()
	cancel    context.CancelFunc
}

func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	r := &Redis{client: client, logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.listen(ctx)
	return r
}

func (r *Redis) Publish(ctx context.Context) error {
	return r.client.Publish(ctx, channelProfileChanged, "").Err()
}

func (r *Redis) Subscribe(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Close stops the subscription loop.
func (r *Redis) Close() {
	r.cancel()
}

func (r *Redis) listen(ctx context.Context) {
	sub := r.client.Subscribe(ctx, channelProfileChanged)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				r.logger.Warn("profile-changed subscription closed")
				return
			}
			r.mu.RLock()
			listeners := append([]func(){}, r.listeners...)
			r.mu.RUnlock()
			for _, fn := range listeners {
				fn()
			}
		}
	}
}
