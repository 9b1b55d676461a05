// Package queue runs dream-art generation as jobs on a Redis stream so that
// slow image requests never hold an HTTP request open.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dreamdecode/internal/util"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ArtJob is the persisted status of one art-generation request.
type ArtJob struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	DreamID      string    `json:"dreamId"`
	Status       string    `json:"status"`
	ArtURL       string    `json:"artUrl,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job will not change any more.
func (j ArtJob) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// ArtHandler produces the art URL for a job.
type ArtHandler func(ctx context.Context, job ArtJob) (artURL string, err error)

// Config configures an ArtQueue. Client takes precedence over Addr.
type Config struct {
	Client     redis.UniversalClient
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
	Logger     *slog.Logger
}

// ArtQueue is a consumer-group backed job queue with per-job status hashes.
type ArtQueue struct {
	client       redis.UniversalClient
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	logger       *slog.Logger
	once         sync.Once
	wg           sync.WaitGroup
}

func NewArtQueue(cfg Config) (*ArtQueue, error) {
	client := cfg.Client
	if client == nil {
		addr := strings.TrimSpace(cfg.Addr)
		if addr == "" {
			return nil, errors.New("redis addr required")
		}
		client = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password})
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "dreamdecode:art"
	}
	q := &ArtQueue{
		client:       client,
		stream:       stream,
		group:        orString(cfg.Group, "art-workers"),
		consumerBase: orString(cfg.Consumer, util.NewID()),
		jobTTL:       orDuration(cfg.JobTTL, 24*time.Hour),
		maxRetries:   cfg.MaxRetries,
		block:        orDuration(cfg.Block, 5*time.Second),
		claimIdle:    orDuration(cfg.ClaimIdle, time.Minute),
		retryDelay:   orDuration(cfg.RetryDelay, 2*time.Second),
		maxLen:       orInt64(cfg.MaxLen, 10000),
		readCount:    orInt64(cfg.ReadCount, 4),
		claimCount:   orInt64(cfg.ClaimCount, 4),
		logger:       cfg.Logger,
	}
	if q.maxRetries <= 0 {
		q.maxRetries = 3
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q, nil
}

// Enqueue records a queued job for the dream and appends it to the stream.
func (q *ArtQueue) Enqueue(ctx context.Context, userID, dreamID string) (ArtJob, error) {
	userID = strings.TrimSpace(userID)
	dreamID = strings.TrimSpace(dreamID)
	if userID == "" || dreamID == "" {
		return ArtJob{}, errors.New("userId and dreamId required")
	}
	now := time.Now().UTC()
	job := ArtJob{
		ID:        util.NewID(),
		UserID:    userID,
		DreamID:   dreamID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return ArtJob{}, fmt.Errorf("write job status: %w", err)
	}
	if err := q.client.XAdd(ctx, q.addArgs(job)).Err(); err != nil {
		return ArtJob{}, fmt.Errorf("enqueue art job: %w", err)
	}
	return job, nil
}

// GetJob returns the job status; ok is false when it expired or never existed.
func (q *ArtQueue) GetJob(ctx context.Context, jobID string) (job ArtJob, ok bool, err error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ArtJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return ArtJob{}, false, err
	}
	if len(data) == 0 {
		return ArtJob{}, false, nil
	}
	return decodeJob(jobID, data), true, nil
}

// Start launches concurrency consumers that run until ctx is done.
func (q *ArtQueue) Start(ctx context.Context, concurrency int, handler ArtHandler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
}

// Wait blocks until every consumer started by Start has returned.
func (q *ArtQueue) Wait() { q.wg.Wait() }

func (q *ArtQueue) Close() error { return q.client.Close() }

func (q *ArtQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.logger.Warn("create consumer group failed", "stream", q.stream, "err", err)
		}
	})
}

func (q *ArtQueue) consumeLoop(ctx context.Context, consumer string, handler ArtHandler) {
	for ctx.Err() == nil {
		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				q.logger.Warn("read art jobs failed", "consumer", consumer, "err", err)
				sleepCtx(ctx, q.retryDelay)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *ArtQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (q *ArtQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler ArtHandler) {
	jobID, _ := msg.Values["job_id"].(string)
	userID, _ := msg.Values["user_id"].(string)
	dreamID, _ := msg.Values["dream_id"].(string)
	if jobID == "" || userID == "" || dreamID == "" {
		q.logger.Warn("dropping malformed art job", "message_id", msg.ID)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, userID, dreamID)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	logger := q.logger.With("job_id", job.ID, "dream_id", job.DreamID, "attempt", job.Attempts)

	artURL, err := handler(ctx, job)
	if err == nil {
		job.Status, job.ArtURL, job.ErrorMessage = StatusDone, artURL, ""
		if werr := q.update(ctx, job); werr != nil {
			logger.Warn("record art job result failed", "err", werr)
		}
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job.ErrorMessage = err.Error()
	if job.Attempts >= q.maxRetries {
		logger.Error("art job failed", "err", err)
		job.Status = StatusFailed
		_ = q.update(ctx, job)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	logger.Warn("art job attempt failed, requeueing", "err", err)
	job.Status = StatusQueued
	_ = q.update(ctx, job)
	if !sleepCtx(ctx, q.retryDelay) {
		return
	}
	if err := q.requeueAndAck(ctx, msg.ID, job); err != nil {
		logger.Warn("requeue art job failed", "err", err)
	}
}

func (q *ArtQueue) addArgs(job ArtJob) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":   job.ID,
			"user_id":  job.UserID,
			"dream_id": job.DreamID,
		},
	}
}

func (q *ArtQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

// requeueAndAck re-adds the job and acknowledges the old message atomically,
// leaving the original pending if the transaction fails.
func (q *ArtQueue) requeueAndAck(ctx context.Context, msgID string, job ArtJob) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(job))
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *ArtQueue) markProcessing(ctx context.Context, jobID, userID, dreamID string) (ArtJob, error) {
	job, ok, err := q.GetJob(ctx, jobID)
	if err != nil {
		return ArtJob{}, err
	}
	if !ok {
		job = ArtJob{ID: jobID}
	}
	job.UserID, job.DreamID = userID, dreamID
	job.Attempts++
	job.Status = StatusProcessing
	if err := q.update(ctx, job); err != nil {
		return ArtJob{}, err
	}
	return job, nil
}

func (q *ArtQueue) update(ctx context.Context, job ArtJob) error {
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	return q.writeStatus(ctx, job)
}

func (q *ArtQueue) writeStatus(ctx context.Context, job ArtJob) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"userId":    job.UserID,
		"dreamId":   job.DreamID,
		"status":    job.Status,
		"artUrl":    job.ArtURL,
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, payload)
	pipe.Expire(ctx, key, q.jobTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *ArtQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeJob(jobID string, data map[string]string) ArtJob {
	job := ArtJob{
		ID:           jobID,
		UserID:       data["userId"],
		DreamID:      data["dreamId"],
		Status:       data["status"],
		ArtURL:       data["artUrl"],
		ErrorMessage: data["error"],
	}
	if n, err := strconv.Atoi(data["attempts"]); err == nil {
		job.Attempts = n
	}
	if t, err := time.Parse(time.RFC3339Nano, data["createdAt"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, data["updatedAt"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func orString(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func orInt64(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}
