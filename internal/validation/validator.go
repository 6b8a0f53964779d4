package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/rules"
)

// DefaultBaseConfidence is the starting confidence for responses whose
// generator gave no estimate. Generators record it explicitly on the
// response; the validator never substitutes it on its own.
const DefaultBaseConfidence = 50.0

// CriticalRiskIssue is appended to the issue list of critical responses.
const CriticalRiskIssue = "Critical risk: human review required"

var riskPenalty = map[string]float64{
	responses.RiskCritical: 40,
	responses.RiskHigh:     25,
	responses.RiskMedium:   10,
	responses.RiskLow:      0,
}

// CheckResult is the outcome of the format or content check.
type CheckResult struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// RiskResult is the response risk assessment.
type RiskResult struct {
	Level   string   `json:"level"`
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

// Result combines all four checks.
type Result struct {
	Passed         bool        `json:"passed"`
	Confidence     float64     `json:"confidence"`
	RiskLevel      string      `json:"riskLevel"`
	Issues         []string    `json:"issues"`
	Format         CheckResult `json:"format"`
	Content        CheckResult `json:"content"`
	Risk           RiskResult  `json:"risk"`
	RequiresHuman  bool        `json:"requiresHuman"`
	CanAutoApprove bool        `json:"canAutoApprove"`
}

// Validator checks candidate responses against one rules snapshot.
type Validator struct {
	rules *rules.Rules
	now   func() time.Time
}

// NewValidator constructs a Validator. A nil snapshot uses rules.Default.
func NewValidator(r *rules.Rules) *Validator {
	if r == nil {
		r = rules.Default()
	}
	return &Validator{rules: r, now: time.Now}
}

// WithClock returns a copy of v that reads the current year from now.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	out := *v
	out.now = now
	return &out
}

// Thresholds returns the thresholds the validator decides with.
func (v *Validator) Thresholds() rules.Thresholds {
	return v.rules.Thresholds
}

// Validate runs every check over resp in the context of inq. All checks always
// run so Issues lists everything wrong with the response. The starting
// confidence is resp.GenerationConfidence.
func (v *Validator) Validate(resp responses.Response, inq inquiries.Inquiry) Result {
	text := resp.ResponseText
	format := v.checkFormat(text)
	content := v.checkContent(text, inq)
	risk := v.assessRisk(text, inq)

	confidence := resp.GenerationConfidence
	confidence -= 5 * float64(len(format.Issues))
	confidence -= 10 * float64(len(content.Issues))
	confidence -= riskPenalty[risk.Level]
	confidence = round2(math.Max(0, math.Min(100, confidence)))

	res := Result{
		Passed:     format.Passed && content.Passed && risk.Level != responses.RiskCritical,
		Confidence: confidence,
		RiskLevel:  risk.Level,
		Format:     format,
		Content:    content,
		Risk:       risk,
	}
	res.Issues = make([]string, 0, len(format.Issues)+len(content.Issues)+1)
	res.Issues = append(res.Issues, format.Issues...)
	res.Issues = append(res.Issues, content.Issues...)
	if risk.Level == responses.RiskCritical {
		res.Issues = append(res.Issues, CriticalRiskIssue)
	}
	t := v.rules.Thresholds
	res.RequiresHuman = RequiresHumanApproval(res.Passed, res.RiskLevel, res.Confidence, t)
	res.CanAutoApprove = CanAutoApprove(res.Passed, res.RiskLevel, res.Confidence, t)
	return res
}

// RequiresHumanApproval reports whether a validated response must wait for an
// operator.
func RequiresHumanApproval(passed bool, riskLevel string, confidence float64, t rules.Thresholds) bool {
	switch {
	case !passed:
		return true
	case riskLevel == responses.RiskCritical || riskLevel == responses.RiskHigh:
		return true
	case confidence < t.ConfidenceThreshold:
		return true
	case riskLevel == responses.RiskMedium && confidence < t.AutoApproveThreshold:
		return true
	default:
		return false
	}
}

// CanAutoApprove is the only path to approval without an operator. Medium
// risk never qualifies, even when RequiresHumanApproval is false.
func CanAutoApprove(passed bool, riskLevel string, confidence float64, t rules.Thresholds) bool {
	return passed && confidence >= t.AutoApproveThreshold && riskLevel == responses.RiskLow
}

func (v *Validator) assessRisk(text string, inq inquiries.Inquiry) RiskResult {
	lowered := strings.ToLower(text)
	vr := v.rules.Validation
	res := RiskResult{Factors: []string{}}
	add := func(points int, factor string) {
		res.Score += points
		res.Factors = append(res.Factors, factor)
	}

	for _, phrase := range vr.LegalPhrases {
		if strings.Contains(lowered, phrase) {
			add(50, fmt.Sprintf("legal phrase %q", phrase))
		}
	}
	mentions := 0
	for _, kw := range vr.FinancialKeywords {
		mentions += strings.Count(lowered, kw)
	}
	if mentions > 2 {
		add(30, fmt.Sprintf("%d financial mentions", mentions))
	}
	if re := v.rules.CurrencyPattern(); re != nil && re.MatchString(text) {
		add(20, "specific amount quoted")
	}
	switch inq.RiskLevel {
	case responses.RiskHigh:
		add(40, "inquiry risk high")
	case responses.RiskMedium:
		add(20, "inquiry risk medium")
	}
	for _, phrase := range vr.ExceptionPhrases {
		if strings.Contains(lowered, phrase) {
			add(25, "mentions exception handling")
			break
		}
	}
	if inq.ComplexityScore > 70 && runeLen(text) < 200 {
		add(15, "short answer to complex inquiry")
	}

	switch {
	case res.Score >= 70:
		res.Level = responses.RiskCritical
	case res.Score >= 40:
		res.Level = responses.RiskHigh
	case res.Score >= 20:
		res.Level = responses.RiskMedium
	default:
		res.Level = responses.RiskLow
	}
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
