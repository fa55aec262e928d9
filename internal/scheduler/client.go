package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/writeback"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const writeBackMaxRetry = 3

// Client enqueues DN sheet tasks. It doubles as the write-back queue of the API.
type Client struct {
	client     *asynq.Client
	queue      string
	syncUnique time.Duration
}

// NewClient connects to Redis. syncUnique bounds how long an enqueued sync
// blocks further sync tasks; it is normally the sync interval.
func NewClient(cfg config.SchedulerConfig, syncUnique time.Duration) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	if syncUnique <= 0 {
		syncUnique = 5 * time.Minute
	}

	return &Client{
		client:     asynq.NewClient(opt),
		queue:      queueName(cfg),
		syncUnique: syncUnique,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSheetSync schedules a sync. A sync that is already pending
// counts as success.
func (c *Client) EnqueueSheetSync(ctx context.Context) error {
	task, err := NewSheetSyncTask(SheetSyncPayload{Trigger: string(dnsync.TriggerScheduled)})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(c.syncUnique))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueueSheetArchive schedules an archive marking pass.
func (c *Client) EnqueueSheetArchive(ctx context.Context, thresholdDays int) error {
	task, err := NewSheetArchiveTask(SheetArchivePayload{ThresholdDays: thresholdDays})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// Submit enqueues a status write-back. The handle resolves at once with a
// queued outcome; the worker performs the write.
func (c *Client) Submit(ctx context.Context, req writeback.Request) (*writeback.Handle, error) {
	task, err := NewSheetWriteBackTask(SheetWriteBackPayload{Request: req})
	if err != nil {
		return nil, err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(writeBackMaxRetry)); err != nil {
		return nil, fmt.Errorf("enqueue sheet write-back: %w", err)
	}
	return writeback.Resolved(sheets.StatusOutcome{
		Status: sheets.OutcomeQueued,
		Sheet:  req.Sheet,
		Row:    req.Row,
		Queued: true,
	}), nil
}

var _ writeback.Queue = (*Client)(nil)

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
