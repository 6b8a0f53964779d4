package triage

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"csreply-backend/internal/rules"
)

// Risk levels an inquiry can be bucketed into. Critical is reserved for
// responses and never produced here.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// CategoryUnknown is reported when no taxonomy keyword is present.
const CategoryUnknown = "unknown"

const (
	maxKeywords          = 10
	ambiguityRatio       = 0.7
	ambiguityPenalty     = 0.7
	minTrustedConfidence = 60.0
	maxComplexityAuto    = 70.0
	longTextRunes        = 500
	mediumTextRunes      = 200
)

// ErrEmptyText is returned for inquiries with no analyzable text.
var ErrEmptyText = errors.New("inquiry text is empty")

var longNumberPattern = regexp.MustCompile(`\d{4,}`)

// Result is the outcome of analyzing one inquiry.
type Result struct {
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	RiskLevel     string   `json:"riskLevel"`
	RiskScore     int      `json:"riskScore"`
	Keywords      []string `json:"keywords"`
	Sentiment     string   `json:"sentiment"`
	Complexity    float64  `json:"complexity"`
	RequiresHuman bool     `json:"requiresHuman"`
	IsUrgent      bool     `json:"isUrgent"`
	// Reasons lists the rules that set RequiresHuman, for operators.
	Reasons []string `json:"reasons,omitempty"`
}

// Analyzer classifies inquiry text against one rules snapshot.
type Analyzer struct {
	rules *rules.Rules
}

func NewAnalyzer(r *rules.Rules) *Analyzer {
	if r == nil {
		r = rules.Default()
	}
	return &Analyzer{rules: r}
}

// Analyze scores text. It has no side effects and returns the same result for
// the same text and rules.
func (a *Analyzer) Analyze(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}
	lowered := strings.ToLower(text)
	hits := scan(lowered, a.rules)
	length := utf8.RuneCountInString(text)
	questions := strings.Count(text, "?")

	res := Result{}
	res.Category, res.Confidence = a.classify(hits)
	res.Keywords = a.keywords(hits)

	negatives := hits.count(a.rules.Analysis.NegativeKeywords)
	financial := false
	if re := a.rules.FinancialPattern(); re != nil {
		financial = re.MatchString(lowered)
	}
	res.RiskScore = riskScore(hits.any(a.rules.Analysis.HighRiskKeywords), negatives, financial, length, questions)
	res.RiskLevel = riskLevel(res.RiskScore)
	res.Sentiment = sentiment(negatives)
	res.Complexity = complexity(length, questions, a.categoriesMentioned(hits), longNumberPattern.MatchString(text))
	res.IsUrgent = hits.any(a.rules.Analysis.UrgentKeywords)

	if res.RiskLevel == RiskHigh {
		res.Reasons = append(res.Reasons, "high risk")
	}
	if res.Confidence < minTrustedConfidence {
		res.Reasons = append(res.Reasons, "low classification confidence")
	}
	if res.Complexity > maxComplexityAuto {
		res.Reasons = append(res.Reasons, "high complexity")
	}
	if hits.any(a.rules.Analysis.LegalKeywords) {
		res.Reasons = append(res.Reasons, "legal keyword")
	}
	if hits.any(a.rules.Analysis.ExceptionKeywords) {
		res.Reasons = append(res.Reasons, "exception request")
	}
	if negatives >= 3 {
		res.Reasons = append(res.Reasons, "strong negative sentiment")
	}
	res.RequiresHuman = len(res.Reasons) > 0
	return res, nil
}

// classify picks the taxonomy category with the most distinct keyword hits.
// Ties go to the category listed first.
func (a *Analyzer) classify(hits frequency) (string, float64) {
	scores := make([]int, len(a.rules.Taxonomy))
	best := -1
	for i, c := range a.rules.Taxonomy {
		scores[i] = hits.count(c.Keywords)
		if scores[i] > 0 && (best < 0 || scores[i] > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return CategoryUnknown, 0
	}
	winner := a.rules.Taxonomy[best]
	top := float64(scores[best])
	confidence := math.Min(100, top/float64(len(winner.Keywords))*100+50)

	contenders := 0
	for _, s := range scores {
		if s > 0 && float64(s) >= ambiguityRatio*top {
			contenders++
		}
	}
	if contenders > 1 {
		confidence *= ambiguityPenalty
	}
	return winner.Name, round2(clamp(confidence))
}

// keywords returns every taxonomy keyword present, in taxonomy order.
func (a *Analyzer) keywords(hits frequency) []string {
	out := make([]string, 0, maxKeywords)
	seen := make(map[string]bool)
	for _, c := range a.rules.Taxonomy {
		for _, kw := range c.Keywords {
			if len(out) == maxKeywords {
				return out
			}
			if hits[kw] > 0 && !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}

func (a *Analyzer) categoriesMentioned(hits frequency) int {
	n := 0
	for _, c := range a.rules.Taxonomy {
		if hits.any(c.Keywords) {
			n++
		}
	}
	return n
}

func riskScore(highRisk bool, negatives int, financial bool, length, questions int) int {
	score := 0
	if highRisk {
		score += 50
	}
	switch {
	case negatives >= 3:
		score += 30
	case negatives >= 1:
		score += 10
	}
	if financial {
		score += 20
	}
	if length > longTextRunes {
		score += 15
	}
	if questions > 3 {
		score += 10
	}
	return score
}

func riskLevel(score int) string {
	switch {
	case score >= 50:
		return RiskHigh
	case score >= 20:
		return RiskMedium
	default:
		return RiskLow
	}
}

// sentiment never reports positive; a single negative cue is not escalated.
func sentiment(negatives int) string {
	if negatives >= 2 {
		return SentimentNegative
	}
	return SentimentNeutral
}

func complexity(length, questions, categories int, longNumber bool) float64 {
	score := 0
	switch {
	case length > longTextRunes:
		score += 30
	case length > mediumTextRunes:
		score += 15
	}
	score += min(20, questions*5)
	if categories > 2 {
		score += 25
	}
	if longNumber {
		score += 10
	}
	return clamp(float64(score))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
