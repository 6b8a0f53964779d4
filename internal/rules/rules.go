package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"csreply-backend/internal/shared/util"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Defaults used when the rules file omits a threshold.
const (
	DefaultConfidenceThreshold  = 80.0
	DefaultAutoApproveThreshold = 90.0
	DefaultMaxResponseLength    = 1000
)

// Rules is an immutable snapshot of every tunable the triage and validation
// engines read. Callers must treat a *Rules as read-only; Store swaps whole
// snapshots instead of mutating one.
type Rules struct {
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Taxonomy   []Category `yaml:"taxonomy" json:"taxonomy"`
	Analysis   Analysis   `yaml:"analysis" json:"analysis"`
	Validation Validation `yaml:"validation" json:"validation"`

	financialPattern   *regexp.Regexp
	currencyPattern    *regexp.Regexp
	placeholderPattern *regexp.Regexp
	fingerprint        string
}

// Thresholds are the numeric gates of the approval workflow.
type Thresholds struct {
	ConfidenceThreshold  float64 `yaml:"confidence_threshold" json:"confidenceThreshold"`
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold" json:"autoApproveThreshold"`
	MaxResponseLength    int     `yaml:"max_response_length" json:"maxResponseLength"`
}

// Category is one entry of the keyword taxonomy.
type Category struct {
	Name     string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Analysis holds the keyword lists used by the inquiry analyzer.
type Analysis struct {
	HighRiskKeywords  []string `yaml:"high_risk_keywords" json:"highRiskKeywords"`
	LegalKeywords     []string `yaml:"legal_keywords" json:"legalKeywords"`
	ExceptionKeywords []string `yaml:"exception_keywords" json:"exceptionKeywords"`
	NegativeKeywords  []string `yaml:"negative_keywords" json:"negativeKeywords"`
	UrgentKeywords    []string `yaml:"urgent_keywords" json:"urgentKeywords"`
	FinancialPattern  string   `yaml:"financial_pattern" json:"financialPattern"`
}

// Validation holds the vocabularies used by the response validator.
type Validation struct {
	Greetings            []string            `yaml:"greetings" json:"greetings"`
	Closings             []string            `yaml:"closings" json:"closings"`
	ForbiddenPhrases     []string            `yaml:"forbidden_phrases" json:"forbiddenPhrases"`
	PlaceholderTokens    []string            `yaml:"placeholder_tokens" json:"placeholderTokens"`
	PlaceholderPattern   string              `yaml:"placeholder_pattern" json:"placeholderPattern"`
	InappropriateWords   []string            `yaml:"inappropriate_words" json:"inappropriateWords"`
	CategoryRequirements map[string][]string `yaml:"category_requirements" json:"categoryRequirements"`
	LegalPhrases         []string            `yaml:"legal_phrases" json:"legalPhrases"`
	FinancialKeywords    []string            `yaml:"financial_keywords" json:"financialKeywords"`
	CurrencyPattern      string              `yaml:"currency_pattern" json:"currencyPattern"`
	ExceptionPhrases     []string            `yaml:"exception_phrases" json:"exceptionPhrases"`
	DateYearWindow       YearWindow          `yaml:"date_year_window" json:"dateYearWindow"`
}

// YearWindow bounds the years accepted in dates quoted by a response,
// relative to the current year.
type YearWindow struct {
	Past   int `yaml:"past" json:"past"`
	Future int `yaml:"future" json:"future"`
}

// Default returns the embedded rule set. It panics if the embedded file is
// invalid, which can only happen through a broken build.
func Default() *Rules {
	r, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("load embedded rules.yaml: %v", err))
	}
	return r
}

// LoadFile reads and parses a rules file.
func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes, normalizes and validates a YAML rules document. Thresholds
// the document omits keep their defaults; an explicit 0 is kept as written.
func Parse(data []byte) (*Rules, error) {
	r := Rules{Thresholds: Thresholds{
		ConfidenceThreshold:  DefaultConfidenceThreshold,
		AutoApproveThreshold: DefaultAutoApproveThreshold,
		MaxResponseLength:    DefaultMaxResponseLength,
	}}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	r.normalize()
	if err := r.compile(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.fingerprint = util.Fingerprint(data)
	return &r, nil
}

// Current lets a fixed snapshot act as a Provider.
func (r *Rules) Current() *Rules { return r }

// WithThresholds returns a copy of r with any positive override applied.
func (r *Rules) WithThresholds(confidence, autoApprove float64, maxLength int) (*Rules, error) {
	out := *r
	if confidence > 0 {
		out.Thresholds.ConfidenceThreshold = confidence
	}
	if autoApprove > 0 {
		out.Thresholds.AutoApproveThreshold = autoApprove
	}
	if maxLength > 0 {
		out.Thresholds.MaxResponseLength = maxLength
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinancialPattern matches currency or refund-amount mentions in inquiries.
func (r *Rules) FinancialPattern() *regexp.Regexp { return r.financialPattern }

// CurrencyPattern matches concrete amounts quoted in responses.
func (r *Rules) CurrencyPattern() *regexp.Regexp { return r.currencyPattern }

// PlaceholderPattern matches bracketed fill-ins such as "[고객명]".
func (r *Rules) PlaceholderPattern() *regexp.Regexp { return r.placeholderPattern }

// Fingerprint identifies the document the snapshot was parsed from.
func (r *Rules) Fingerprint() string { return r.fingerprint }

// CategoryNames returns taxonomy category names in tie-break order.
func (r *Rules) CategoryNames() []string {
	out := make([]string, 0, len(r.Taxonomy))
	for _, c := range r.Taxonomy {
		out = append(out, c.Name)
	}
	return out
}

// Validate checks the invariants the engines rely on.
func (r *Rules) Validate() error {
	var errs []error
	t := r.Thresholds
	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("confidence_threshold %.2f outside [0,100]", t.ConfidenceThreshold))
	}
	if t.AutoApproveThreshold < 0 || t.AutoApproveThreshold > 100 {
		errs = append(errs, fmt.Errorf("auto_approve_threshold %.2f outside [0,100]", t.AutoApproveThreshold))
	}
	if t.MaxResponseLength < 20 {
		errs = append(errs, fmt.Errorf("max_response_length %d must be at least 20", t.MaxResponseLength))
	}
	if len(r.Taxonomy) == 0 {
		errs = append(errs, errors.New("taxonomy must define at least one category"))
	}
	seen := make(map[string]bool, len(r.Taxonomy))
	for i, c := range r.Taxonomy {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("taxonomy[%d] has no category name", i))
			continue
		}
		if c.Name == "unknown" {
			errs = append(errs, fmt.Errorf("taxonomy[%d] uses reserved name %q", i, c.Name))
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("taxonomy category %q defined twice", c.Name))
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("taxonomy category %q has no keywords", c.Name))
		}
	}
	if r.Validation.DateYearWindow.Past < 0 || r.Validation.DateYearWindow.Future < 0 {
		errs = append(errs, errors.New("date_year_window values must not be negative"))
	}
	return errors.Join(errs...)
}

func (r *Rules) normalize() {
	for i := range r.Taxonomy {
		r.Taxonomy[i].Name = strings.ToLower(strings.TrimSpace(r.Taxonomy[i].Name))
		r.Taxonomy[i].Keywords = normalizeList(r.Taxonomy[i].Keywords)
	}
	a := &r.Analysis
	a.HighRiskKeywords = normalizeList(a.HighRiskKeywords)
	a.LegalKeywords = normalizeList(a.LegalKeywords)
	a.ExceptionKeywords = normalizeList(a.ExceptionKeywords)
	a.NegativeKeywords = normalizeList(a.NegativeKeywords)
	a.UrgentKeywords = normalizeList(a.UrgentKeywords)

	v := &r.Validation
	v.Greetings = normalizeList(v.Greetings)
	v.Closings = normalizeList(v.Closings)
	v.ForbiddenPhrases = normalizeList(v.ForbiddenPhrases)
	v.InappropriateWords = normalizeList(v.InappropriateWords)
	v.LegalPhrases = normalizeList(v.LegalPhrases)
	v.FinancialKeywords = normalizeList(v.FinancialKeywords)
	v.ExceptionPhrases = normalizeList(v.ExceptionPhrases)
	// Placeholder tokens are matched case-sensitively ("TODO").
	v.PlaceholderTokens = dedupe(v.PlaceholderTokens)
	reqs := make(map[string][]string, len(v.CategoryRequirements))
	for category, words := range v.CategoryRequirements {
		reqs[strings.ToLower(strings.TrimSpace(category))] = normalizeList(words)
	}
	v.CategoryRequirements = reqs
}

func (r *Rules) compile() error {
	var err error
	if r.financialPattern, err = compileOptional("financial_pattern", r.Analysis.FinancialPattern); err != nil {
		return err
	}
	if r.currencyPattern, err = compileOptional("currency_pattern", r.Validation.CurrencyPattern); err != nil {
		return err
	}
	if r.placeholderPattern, err = compileOptional("placeholder_pattern", r.Validation.PlaceholderPattern); err != nil {
		return err
	}
	return nil
}

func compileOptional(name, expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return re, nil
}

func normalizeList(items []string) []string {
	lowered := make([]string, 0, len(items))
	for _, item := range items {
		lowered = append(lowered, strings.ToLower(item))
	}
	return dedupe(lowered)
}

// dedupe trims entries and drops blanks and repeats, keeping first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}
