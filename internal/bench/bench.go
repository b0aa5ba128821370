// Package bench drives concurrent upvote traffic against a running server
// and checks that a post's points equal its upvote count afterwards.
package bench

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"betternews/internal/client"
)

// Result 一次压测的结果
type Result struct {
	Operations     int64
	Errors         int64
	Throughput     float64
	AverageLatency time.Duration
	P50Latency     time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration
	TotalTime      time.Duration
	PostID         uint
	ExpectedPoints int
	ActualPoints   int
	DataIntegrity  bool
}

type Runner struct {
	cfg Config
	log *zap.Logger
}

func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, log: logger.With(zap.String("component", "bench"))}
}

func benchUsername() string {
	return "bench_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

type voter struct {
	api *client.HTTPClient
}

// Run signs up Voters users, has all of them upvote one post concurrently,
// then has Unvoters of them take the upvote back.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	author, err := r.signup(ctx)
	if err != nil {
		return nil, fmt.Errorf("signup author: %w", err)
	}
	postID, err := author.CreatePost(ctx, "bench "+time.Now().Format(time.RFC3339), "", "upvote load test")
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	r.log.Info("post created", zap.Uint("post_id", postID))

	voters := make([]voter, r.cfg.Voters)
	if err := r.parallel(ctx, r.cfg.Voters, func(ctx context.Context, i int) error {
		api, err := r.signup(ctx)
		voters[i] = voter{api: api}
		return err
	}, nil); err != nil {
		return nil, fmt.Errorf("signup voters: %w", err)
	}

	// 最大 10s，3 位有效数字
	histogram := hdrhistogram.New(1, 10000000, 3)
	result := &Result{PostID: postID}
	var mu sync.Mutex
	record := func(latency time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Errors++
			return
		}
		result.Operations++
		_ = histogram.RecordValue(latency.Microseconds())
	}

	start := time.Now()
	upvote := func(ctx context.Context, i int) error {
		_, err := voters[i].api.UpvotePost(ctx, postID)
		return err
	}
	_ = r.parallel(ctx, r.cfg.Voters, upvote, record)
	_ = r.parallel(ctx, r.cfg.Unvoters, upvote, record)
	result.TotalTime = time.Since(start)

	post, err := author.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("reload post: %w", err)
	}

	result.ExpectedPoints = r.cfg.Voters - r.cfg.Unvoters
	result.ActualPoints = post.Points
	result.DataIntegrity = result.Errors == 0 && post.Points == result.ExpectedPoints
	if result.TotalTime > 0 {
		result.Throughput = float64(result.Operations) / result.TotalTime.Seconds()
	}
	result.AverageLatency = time.Duration(histogram.Mean()) * time.Microsecond
	result.P50Latency = time.Duration(histogram.ValueAtQuantile(50)) * time.Microsecond
	result.P95Latency = time.Duration(histogram.ValueAtQuantile(95)) * time.Microsecond
	result.P99Latency = time.Duration(histogram.ValueAtQuantile(99)) * time.Microsecond

	r.log.Info("bench finished",
		zap.Int64("operations", result.Operations),
		zap.Int64("errors", result.Errors),
		zap.Int("points", result.ActualPoints),
		zap.Bool("integrity", result.DataIntegrity),
	)
	return result, nil
}

func (r *Runner) signup(ctx context.Context) (*client.HTTPClient, error) {
	api, err := client.NewHTTPClient(r.cfg.Target, nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if err := api.Signup(ctx, benchUsername(), r.cfg.Password); err != nil {
		return nil, err
	}
	return api, nil
}

// parallel runs fn for 0..n-1 with at most Concurrency in flight. With a
// record callback every outcome is reported there and parallel returns nil;
// otherwise the first error is returned.
func (r *Runner) parallel(ctx context.Context, n int, fn func(context.Context, int) error, record func(time.Duration, error)) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, r.cfg.Concurrency)
	for i := 0; i < n; i++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			opCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
			start := time.Now()
			err := fn(opCtx, i)
			if record != nil {
				record(time.Since(start), err)
				if err != nil {
					r.log.Warn("operation failed", zap.Int("worker", i), zap.Error(err))
				}
				return
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}
