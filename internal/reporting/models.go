package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

// CallsSummaryRequest asks for call outcome counts in one workspace.
// Kind optionally narrows to DIRECT or GROUP.
type CallsSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	Kind        string    `json:"kind,omitempty"`
}

type CallsSummary struct {
	WorkspaceID string `json:"workspace_id"`
	Kind        string `json:"kind,omitempty"`

	TotalCalls     int `json:"total_calls"`
	DirectCalls    int `json:"direct_calls"`
	GroupCalls     int `json:"group_calls"`
	AnsweredCalls  int `json:"answered_calls"`
	MissedCalls    int `json:"missed_calls"`
	RejectedCalls  int `json:"rejected_calls"`
	CancelledCalls int `json:"cancelled_calls"`
	OpenCalls      int `json:"open_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// AnswerRate is answered / (total - open).
	AnswerRate float64 `json:"answer_rate"`
}

// UserSummaryRequest asks for one user's call activity.
type UserSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Range       TimeRange `json:"range"`
}

type UserSummary struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`

	Placed   int `json:"placed"`
	Received int `json:"received"`
	Joined   int `json:"joined"`
	Missed   int `json:"missed"`
	Declined int `json:"declined"`

	// TalkSeconds sums the time this user spent joined in ended calls.
	TalkSeconds int `json:"talk_seconds"`
}
