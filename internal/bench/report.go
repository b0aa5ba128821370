package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// WriteReport prints a human-readable summary of r.
func WriteReport(w io.Writer, r *Result) error {
	status := "OK"
	if !r.DataIntegrity {
		status = "FAILED"
	}
	_, err := fmt.Fprintf(w, `post:          %d
operations:    %s (%s errors)
total time:    %s
throughput:    %s ops/s
latency avg:   %s
latency p50:   %s
latency p95:   %s
latency p99:   %s
points:        %s (expected %s)
integrity:     %s
`,
		r.PostID,
		humanize.Comma(r.Operations), humanize.Comma(r.Errors),
		r.TotalTime.Round(time.Millisecond),
		humanize.CommafWithDigits(r.Throughput, 1),
		r.AverageLatency, r.P50Latency, r.P95Latency, r.P99Latency,
		humanize.Comma(int64(r.ActualPoints)), humanize.Comma(int64(r.ExpectedPoints)),
		status,
	)
	return err
}
