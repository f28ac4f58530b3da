package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/asp-booking-api/pkg/jobs"
)

// Publisher dispatches domain events to external subscribers. Publish
// failures never roll back the state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher fans events out over Redis pub/sub. Critical events are
// additionally appended to a stream so billing consumers can replay them
// even when nobody was subscribed at publish time.
type RedisPublisher struct {
	client         *redis.Client
	channel        string
	criticalStream string
}

// NewRedisPublisher constructs a publisher on top of the shared client.
func NewRedisPublisher(client *redis.Client, channel, criticalStream string) *RedisPublisher {
	if channel == "" {
		channel = "attendance.events"
	}
	if criticalStream == "" {
		criticalStream = channel + ".critical"
	}
	return &RedisPublisher{client: client, channel: channel, criticalStream: criticalStream}
}

// Publish serialises the event and dispatches it.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	if ev.Critical {
		if err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.criticalStream,
			Values: map[string]interface{}{"event": payload},
		}).Err(); err != nil {
			return fmt.Errorf("append critical event %s: %w", ev.ID, err)
		}
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		if ev.Critical {
			// Already durable on the stream; pub/sub delivery is best effort.
			return nil
		}
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}

// LogPublisher writes events to the log. It backs deployments without Redis
// and keeps the event path observable in tests.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a logging publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event payload.
func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info("domain_event",
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("session_id", ev.SessionID),
		zap.String("child_id", ev.ChildID),
		zap.Bool("critical", ev.Critical),
	)
	return nil
}

// AsyncPublisher decouples publication from the request path using the jobs
// queue. Critical events get a deeper retry budget; exhausted retries are
// logged, never surfaced to the caller.
type AsyncPublisher struct {
	queue  *jobs.Queue
	logger *zap.Logger

	criticalRetries int
}

// AsyncConfig tunes the dispatch queue.
type AsyncConfig struct {
	Workers         int
	Buffer          int
	Retries         int
	CriticalRetries int
	RetryWait       time.Duration
	Logger          *zap.Logger
}

// NewAsyncPublisher wraps a delegate publisher with background dispatch.
func NewAsyncPublisher(delegate Publisher, cfg AsyncConfig) *AsyncPublisher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CriticalRetries <= 0 {
		cfg.CriticalRetries = cfg.Retries * 2
	}

	p := &AsyncPublisher{logger: cfg.Logger, criticalRetries: cfg.CriticalRetries}
	p.queue = jobs.NewQueue("events", func(ctx context.Context, job jobs.Job) error {
		ev, ok := job.Payload.(Event)
		if !ok {
			p.logger.Error("dropping malformed event job", zap.String("job_id", job.ID))
			return nil
		}
		return delegate.Publish(ctx, ev)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryWait,
		Logger:     cfg.Logger,
	})
	return p
}

// Start launches the dispatch workers.
func (p *AsyncPublisher) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (p *AsyncPublisher) Stop() {
	p.queue.Stop()
}

// Publish enqueues the event for background delivery.
func (p *AsyncPublisher) Publish(_ context.Context, ev Event) error {
	job := jobs.Job{ID: ev.ID, Kind: string(ev.Kind), Payload: ev}
	if ev.Critical {
		job.MaxRetries = p.criticalRetries
	}
	return p.queue.Enqueue(job)
}
