package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	inquiriesAnalyzedTotal      atomic.Uint64
	inquiriesFailedTotal        atomic.Uint64
	inquiriesRequiresHumanTotal atomic.Uint64
	responsesGeneratedTotal     atomic.Uint64
	responsesValidatedTotal     atomic.Uint64
	responsesAutoApprovedTotal  atomic.Uint64
	responsesSubmittedTotal     atomic.Uint64
	submissionFailedTotal       atomic.Uint64
	pipelineErrorsTotal         atomic.Uint64

	jobsReceivedTotal  atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64
	jobsDroppedTotal   atomic.Uint64

	pipelineDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000})
)

func IncInquiriesAnalyzed()      { inquiriesAnalyzedTotal.Add(1) }
func IncInquiriesFailed()        { inquiriesFailedTotal.Add(1) }
func IncInquiriesRequiresHuman() { inquiriesRequiresHumanTotal.Add(1) }
func IncResponsesGenerated()     { responsesGeneratedTotal.Add(1) }
func IncResponsesValidated()     { responsesValidatedTotal.Add(1) }
func IncResponsesAutoApproved()  { responsesAutoApprovedTotal.Add(1) }
func IncResponsesSubmitted()     { responsesSubmittedTotal.Add(1) }
func IncSubmissionFailed()       { submissionFailedTotal.Add(1) }
func IncPipelineErrors()         { pipelineErrorsTotal.Add(1) }

func IncJobsReceived()  { jobsReceivedTotal.Add(1) }
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }
func IncJobsFailed()    { jobsFailedTotal.Add(1) }

// IncJobsDropped counts queue messages discarded as unprocessable.
func IncJobsDropped() { jobsDroppedTotal.Add(1) }

// ObservePipelineDurationMs records one inquiry's end-to-end pipeline time.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "inquiries_analyzed_total", "Inquiries analyzed", inquiriesAnalyzedTotal.Load())
	writeCounter(&buf, "inquiries_failed_total", "Inquiries whose analysis failed", inquiriesFailedTotal.Load())
	writeCounter(&buf, "inquiries_requires_human_total", "Inquiries routed to an operator", inquiriesRequiresHumanTotal.Load())
	writeCounter(&buf, "responses_generated_total", "Response drafts generated", responsesGeneratedTotal.Load())
	writeCounter(&buf, "responses_validated_total", "Response validations run", responsesValidatedTotal.Load())
	writeCounter(&buf, "responses_auto_approved_total", "Responses approved without an operator", responsesAutoApprovedTotal.Load())
	writeCounter(&buf, "responses_submitted_total", "Responses delivered", responsesSubmittedTotal.Load())
	writeCounter(&buf, "responses_submission_failed_total", "Failed submission attempts", submissionFailedTotal.Load())
	writeCounter(&buf, "pipeline_errors_total", "Pipeline stage errors", pipelineErrorsTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Queue messages processed", jobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Queue messages whose processing failed", jobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_dropped_total", "Unprocessable queue messages dropped", jobsDroppedTotal.Load())
	writeHistogram(&buf, "pipeline_duration_ms", "Pipeline duration per inquiry in milliseconds", pipelineDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
