package inquiries

import (
	"time"

	"csreply-backend/internal/triage"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// Inquiry is one customer question plus the triage fields written by the
// analyzer. Text never changes after intake.
type Inquiry struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	ExternalID   string `json:"externalId,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
	OrderNumber  string `json:"orderNumber,omitempty"`
	ProductName  string `json:"productName,omitempty"`
	Text         string `json:"text"`

	ClassifiedCategory string   `json:"classifiedCategory,omitempty"`
	ConfidenceScore    float64  `json:"confidenceScore"`
	RiskLevel          string   `json:"riskLevel,omitempty"`
	Keywords           []string `json:"keywords"`
	Sentiment          string   `json:"sentiment,omitempty"`
	ComplexityScore    float64  `json:"complexityScore"`
	RequiresHuman      bool     `json:"requiresHuman"`
	IsUrgent           bool     `json:"isUrgent"`

	Status       string     `json:"status"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ReceivedAt   time.Time  `json:"receivedAt"`
	AnalyzedAt   *time.Time `json:"analyzedAt,omitempty"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ApplyAnalysis copies an analyzer result onto the inquiry and marks it
// processed. RequiresHuman only ever moves from false to true.
func (i *Inquiry) ApplyAnalysis(res triage.Result, at time.Time) {
	i.ClassifiedCategory = res.Category
	i.ConfidenceScore = res.Confidence
	i.RiskLevel = res.RiskLevel
	i.Keywords = append([]string(nil), res.Keywords...)
	i.Sentiment = res.Sentiment
	i.ComplexityScore = res.Complexity
	i.RequiresHuman = i.RequiresHuman || res.RequiresHuman
	i.IsUrgent = res.IsUrgent
	i.Status = StatusProcessed
	i.ErrorCode = ""
	i.ErrorMessage = ""
	analyzedAt := at
	i.AnalyzedAt = &analyzedAt
}

// MarkFailed records an analysis failure.
func (i *Inquiry) MarkFailed(code, message string) {
	i.Status = StatusFailed
	i.ErrorCode = code
	i.ErrorMessage = message
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Status        string
	RequiresHuman *bool
	Limit         int
	Offset        int
}
