package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the forum counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	postsCreated    metric.Int64Counter
	commentsCreated metric.Int64Counter
	upvoteToggles   metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	postsCreated, err := meter.Int64Counter("forum_posts_created_total",
		metric.WithDescription("Posts created"))
	if err != nil {
		return nil, fmt.Errorf("posts counter: %w", err)
	}
	commentsCreated, err := meter.Int64Counter("forum_comments_created_total",
		metric.WithDescription("Comments created, labelled by kind"))
	if err != nil {
		return nil, fmt.Errorf("comments counter: %w", err)
	}
	upvoteToggles, err := meter.Int64Counter("forum_upvote_toggles_total",
		metric.WithDescription("Upvote toggles, labelled by entity and direction"))
	if err != nil {
		return nil, fmt.Errorf("upvote counter: %w", err)
	}
	requestDuration, err := meter.Float64Histogram("forum_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("request histogram: %w", err)
	}

	return &Metrics{
		postsCreated:    postsCreated,
		commentsCreated: commentsCreated,
		upvoteToggles:   upvoteToggles,
		requestDuration: requestDuration,
	}, nil
}

func (m *Metrics) PostCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.postsCreated.Add(ctx, 1)
}

func (m *Metrics) CommentCreated(ctx context.Context, reply bool) {
	if m == nil {
		return
	}
	kind := "top_level"
	if reply {
		kind = "reply"
	}
	m.commentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) UpvoteToggled(ctx context.Context, entity string, upvoted bool) {
	if m == nil {
		return
	}
	m.upvoteToggles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.Bool("upvoted", upvoted),
	))
}

func (m *Metrics) RequestServed(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
