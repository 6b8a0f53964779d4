package responses

import "time"

const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusSubmitted       = "submitted"
)

const (
	SubmissionPending = "pending"
	SubmissionSuccess = "success"
	SubmissionFailed  = "failed"
)

// Risk levels a validated response can carry.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// ApproverSystem is recorded as the approver of auto-approved responses.
const ApproverSystem = "system"

// Response is one candidate answer to an inquiry.
type Response struct {
	ID               string `json:"id"`
	InquiryID        string `json:"inquiryId"`
	ResponseText     string `json:"responseText"`
	OriginalResponse string `json:"originalResponse,omitempty"`
	GenerationMethod string `json:"generationMethod"`
	// GenerationConfidence is the generator's own estimate. Validation always
	// starts from it, so re-validating an edited response never compounds.
	GenerationConfidence float64 `json:"generationConfidence"`

	ConfidenceScore    float64    `json:"confidenceScore"`
	RiskLevel          string     `json:"riskLevel,omitempty"`
	ValidationPassed   bool       `json:"validationPassed"`
	FormatCheckPassed  bool       `json:"formatCheckPassed"`
	ContentCheckPassed bool       `json:"contentCheckPassed"`
	ValidationIssues   []string   `json:"validationIssues"`
	ValidatedAt        *time.Time `json:"validatedAt,omitempty"`

	Status          string     `json:"status"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	AutoApproved    bool       `json:"autoApproved"`
	RejectedBy      string     `json:"rejectedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`

	SubmissionStatus   string     `json:"submissionStatus,omitempty"`
	SubmissionError    string     `json:"submissionError,omitempty"`
	SubmissionAttempts int        `json:"submissionAttempts"`
	SubmittedAt        *time.Time `json:"submittedAt,omitempty"`

	EditCount int       `json:"editCount"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Active reports whether the response still counts as the inquiry's current
// answer. At most one active response exists per inquiry.
func (r Response) Active() bool {
	switch r.Status {
	case StatusDraft, StatusPendingApproval, StatusApproved:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (r Response) Terminal() bool {
	return r.Status == StatusRejected || r.Status == StatusSubmitted
}

// Event is one audit record of a response status change or action.
type Event struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"responseId"`
	InquiryID  string    `json:"inquiryId"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Status    string
	InquiryID string
	Limit     int
	Offset    int
}
