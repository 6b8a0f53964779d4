package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesPipelineMetrics(t *testing.T) {
	IncInquiriesAnalyzed()
	IncResponsesAutoApproved()
	ObservePipelineDurationMs(30)
	ObservePipelineDurationMs(-1)

	out := Render()
	for _, want := range []string{
		"# TYPE inquiries_analyzed_total counter",
		"# TYPE responses_auto_approved_total counter",
		"# TYPE pipeline_duration_ms histogram",
		`pipeline_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)
	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts %v", snap.counts)
	}
}
