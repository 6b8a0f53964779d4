package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const minimalRules = `
thresholds:
  confidence_threshold: 70
taxonomy:
  - category: Shipping
    keywords: [배송, 배송, " 택배 "]
validation:
  placeholder_tokens: [TODO, TODO]
`

func TestDefaultRules(t *testing.T) {
	r := Default()
	if r.Thresholds != (Thresholds{ConfidenceThreshold: 80, AutoApproveThreshold: 90, MaxResponseLength: 1000}) {
		t.Fatalf("unexpected thresholds: %+v", r.Thresholds)
	}
	want := []string{"shipping", "refund", "exchange", "return", "product", "order", "cancel"}
	if diff := cmp.Diff(want, r.CategoryNames()); diff != "" {
		t.Fatalf("category order mismatch (-want +got):\n%s", diff)
	}
	if r.FinancialPattern() == nil || r.CurrencyPattern() == nil || r.PlaceholderPattern() == nil {
		t.Fatalf("expected compiled patterns")
	}
	if !r.PlaceholderPattern().MatchString("[고객명]님") {
		t.Fatalf("expected bracketed fill-in to match")
	}
	if r.Fingerprint() == "" {
		t.Fatalf("expected fingerprint")
	}
}

func TestParseNormalizesLists(t *testing.T) {
	r, err := Parse([]byte(minimalRules))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Thresholds.ConfidenceThreshold != 70 || r.Thresholds.AutoApproveThreshold != DefaultAutoApproveThreshold {
		t.Fatalf("unexpected thresholds: %+v", r.Thresholds)
	}
	if r.Thresholds.MaxResponseLength != DefaultMaxResponseLength {
		t.Fatalf("expected default max length, got %d", r.Thresholds.MaxResponseLength)
	}
	want := Category{Name: "shipping", Keywords: []string{"배송", "택배"}}
	if diff := cmp.Diff(want, r.Taxonomy[0]); diff != "" {
		t.Fatalf("taxonomy mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"TODO"}, r.Validation.PlaceholderTokens); diff != "" {
		t.Fatalf("placeholder tokens mismatch (-want +got):\n%s", diff)
	}
	if r.PlaceholderPattern() != nil {
		t.Fatalf("expected no placeholder pattern")
	}
}

func TestParseKeepsExplicitZeroThresholds(t *testing.T) {
	doc := `
thresholds:
  confidence_threshold: 0
  auto_approve_threshold: 0
taxonomy:
  - category: shipping
    keywords: [배송]
`
	r, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Thresholds{ConfidenceThreshold: 0, AutoApproveThreshold: 0, MaxResponseLength: DefaultMaxResponseLength}
	if r.Thresholds != want {
		t.Fatalf("unexpected thresholds: %+v", r.Thresholds)
	}

	empty, err := Parse([]byte("thresholds:\ntaxonomy: [{category: a, keywords: [x]}]"))
	if err != nil {
		t.Fatalf("parse empty thresholds: %v", err)
	}
	if empty.Thresholds.AutoApproveThreshold != DefaultAutoApproveThreshold {
		t.Fatalf("expected defaults for an empty thresholds block, got %+v", empty.Thresholds)
	}

	if _, err := Parse([]byte("thresholds: {max_response_length: 0}\ntaxonomy: [{category: a, keywords: [x]}]")); err == nil ||
		!strings.Contains(err.Error(), "max_response_length") {
		t.Fatalf("expected explicit zero max length to be rejected, got %v", err)
	}
}

func TestParseRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "yaml", doc: "thresholds: [", want: "decode rules"},
		{name: "regex", doc: "taxonomy: [{category: a, keywords: [x]}]\nvalidation: {currency_pattern: '(['}", want: "compile currency_pattern"},
		{name: "no taxonomy", doc: "thresholds: {confidence_threshold: 80}", want: "at least one category"},
		{name: "threshold range", doc: "thresholds: {auto_approve_threshold: 120}\ntaxonomy: [{category: a, keywords: [x]}]", want: "auto_approve_threshold"},
		{name: "reserved name", doc: "taxonomy: [{category: unknown, keywords: [x]}]", want: "reserved name"},
		{name: "duplicate", doc: "taxonomy: [{category: a, keywords: [x]}, {category: A, keywords: [y]}]", want: "defined twice"},
		{name: "empty keywords", doc: "taxonomy: [{category: a, keywords: []}]", want: "has no keywords"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWithThresholds(t *testing.T) {
	base := Default()
	got, err := base.WithThresholds(75, 0, 800)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	want := Thresholds{ConfidenceThreshold: 75, AutoApproveThreshold: 90, MaxResponseLength: 800}
	if got.Thresholds != want {
		t.Fatalf("unexpected thresholds: %+v", got.Thresholds)
	}
	if base.Thresholds.ConfidenceThreshold != 80 {
		t.Fatalf("base snapshot was mutated")
	}
	if _, err := base.WithThresholds(150, 0, 0); err == nil {
		t.Fatalf("expected out-of-range override to fail")
	}
}

func TestStoreSwap(t *testing.T) {
	first := Default()
	store := NewStore(first)
	second, _ := first.WithThresholds(60, 0, 0)
	if prev := store.Swap(second); prev != first {
		t.Fatalf("expected previous snapshot to be returned")
	}
	if store.Current() != second {
		t.Fatalf("expected swapped snapshot")
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(minimalRules), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	initial, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	store := NewStore(initial)
	w, err := NewWatcher(path, store, func(r *Rules) (*Rules, error) {
		return r.WithThresholds(0, 95, 0)
	})
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()

	changed, err := w.Reload()
	if err != nil || changed {
		t.Fatalf("expected unchanged file to be skipped, changed=%v err=%v", changed, err)
	}

	updated := strings.Replace(minimalRules, "confidence_threshold: 70", "confidence_threshold: 65", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	changed, err = w.Reload()
	if err != nil || !changed {
		t.Fatalf("expected reload, changed=%v err=%v", changed, err)
	}
	got := store.Current().Thresholds
	if got.ConfidenceThreshold != 65 || got.AutoApproveThreshold != 95 {
		t.Fatalf("unexpected thresholds after reload: %+v", got)
	}

	if err := os.WriteFile(path, []byte("taxonomy: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	before := store.Current()
	if _, err := w.Reload(); err == nil {
		t.Fatalf("expected invalid file to fail")
	}
	if store.Current() != before {
		t.Fatalf("expected previous snapshot to stay active")
	}
}
