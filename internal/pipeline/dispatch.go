package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("pipeline queue is full")
	ErrQueueClosed = errors.New("pipeline queue is closed")
)

// Dispatcher moves jobs from Submit to the workers.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job arrives or ctx ends. ack must be called once the job is handled.
	Dequeue(ctx context.Context) (Job, func(), error)
	// Len is the number of jobs waiting, when known.
	Len(ctx context.Context) int
	Close() error
}

// ChannelDispatcher is the in-process dispatcher.
type ChannelDispatcher struct {
	jobs   chan Job
	closed chan struct{}
}

func NewChannelDispatcher(size int) *ChannelDispatcher {
	if size <= 0 {
		size = 256
	}
	return &ChannelDispatcher{jobs: make(chan Job, size), closed: make(chan struct{})}
}

func (d *ChannelDispatcher) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-d.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (d *ChannelDispatcher) Dequeue(ctx context.Context) (Job, func(), error) {
	select {
	case job := <-d.jobs:
		return job, func() {}, nil
	case <-d.closed:
		return Job{}, nil, ErrQueueClosed
	case <-ctx.Done():
		return Job{}, nil, ctx.Err()
	}
}

func (d *ChannelDispatcher) Len(context.Context) int { return len(d.jobs) }

func (d *ChannelDispatcher) Close() error {
	select {
	case <-d.closed:
	default:
		close(d.closed)
	}
	return nil
}

// RedisDispatcher shares one queue between API instances through a Redis
// stream read by a consumer group. Messages a dead consumer left pending for
// longer than minIdle are claimed and handed out again.
type RedisDispatcher struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	block      time.Duration
	minIdle    time.Duration
	claimEvery time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	claimed   []redis.XMessage
	lastClaim time.Time
}

// NewRedisDispatcher creates the consumer group if it does not exist yet.
func NewRedisDispatcher(ctx context.Context, client *redis.Client, stream, group string, minIdle time.Duration, logger *zap.Logger) (*RedisDispatcher, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	host, _ := os.Hostname()
	claimEvery := minIdle / 2
	if claimEvery < time.Second {
		claimEvery = time.Second
	}
	return &RedisDispatcher{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   host + "-" + uuid.NewString()[:8],
		block:      2 * time.Second,
		minIdle:    minIdle,
		claimEvery: claimEvery,
		logger:     logger,
	}, nil
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("add job to stream: %w", err)
	}
	return nil
}

func (d *RedisDispatcher) Dequeue(ctx context.Context) (Job, func(), error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, nil, err
		}
		msg, ok, err := d.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, nil, ctx.Err()
			}
			return Job{}, nil, err
		}
		if !ok {
			continue
		}

		ack := func() {
			if err := d.client.XAck(context.Background(), d.stream, d.group, msg.ID).Err(); err != nil {
				d.logger.Warn("ack job failed", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
		job, err := decodeJob(msg)
		if err != nil {
			d.logger.Warn("dropping malformed job message", zap.String("message_id", msg.ID), zap.Error(err))
			ack()
			continue
		}
		return job, ack, nil
	}
}

// next returns a reclaimed message when one is waiting, else reads a new one.
func (d *RedisDispatcher) next(ctx context.Context) (redis.XMessage, bool, error) {
	if msg, ok := d.popClaimed(); ok {
		return msg, true, nil
	}
	if d.claimDue() {
		if err := d.claimStale(ctx); err != nil {
			d.logger.Warn("claim stale jobs failed", zap.Error(err))
		}
		if msg, ok := d.popClaimed(); ok {
			return msg, true, nil
		}
	}

	streams, err := d.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    d.group,
		Consumer: d.consumer,
		Streams:  []string{d.stream, ">"},
		Count:    1,
		Block:    d.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redis.XMessage{}, false, nil
		}
		return redis.XMessage{}, false, fmt.Errorf("read job stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return redis.XMessage{}, false, nil
	}
	return streams[0].Messages[0], true, nil
}

func (d *RedisDispatcher) popClaimed() (redis.XMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.claimed) == 0 {
		return redis.XMessage{}, false
	}
	msg := d.claimed[0]
	d.claimed = d.claimed[1:]
	return msg, true
}

// claimDue reports whether a claim pass should run now and reserves it.
func (d *RedisDispatcher) claimDue() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if time.Since(d.lastClaim) < d.claimEvery {
		return false
	}
	d.lastClaim = time.Now()
	return true
}

// claimStale takes over messages pending longer than minIdle on any consumer.
func (d *RedisDispatcher) claimStale(ctx context.Context) error {
	pending, err := d.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: d.stream,
		Group:  d.group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	ids, dead := staleIDs(pending, d.minIdle)
	if len(dead) > 0 {
		d.logger.Warn("dropping jobs delivered too many times", zap.Strings("message_ids", dead))
		if err := d.client.XAck(ctx, d.stream, d.group, dead...).Err(); err != nil {
			return fmt.Errorf("ack dead jobs: %w", err)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	msgs, err := d.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   d.stream,
		Group:    d.group,
		Consumer: d.consumer,
		MinIdle:  d.minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("claim pending jobs: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}
	d.logger.Info("claimed stale pipeline jobs", zap.Int("count", len(msgs)))
	d.mu.Lock()
	d.claimed = append(d.claimed, msgs...)
	d.mu.Unlock()
	return nil
}

// maxDeliveries is how often a job message is handed out before it is dropped.
const maxDeliveries = 5

// staleIDs splits the entries idle for at least minIdle into those to claim
// and those already delivered maxDeliveries times.
func staleIDs(pending []redis.XPendingExt, minIdle time.Duration) (claim, dead []string) {
	for _, p := range pending {
		if p.Idle < minIdle {
			continue
		}
		if p.RetryCount >= maxDeliveries {
			dead = append(dead, p.ID)
			continue
		}
		claim = append(claim, p.ID)
	}
	return claim, dead
}

func decodeJob(msg redis.XMessage) (Job, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return Job{}, errors.New("missing data field")
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

func (d *RedisDispatcher) Len(ctx context.Context) int {
	n, err := d.client.XLen(ctx, d.stream).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close leaves the client open; it is owned by the caller.
func (d *RedisDispatcher) Close() error { return nil }
