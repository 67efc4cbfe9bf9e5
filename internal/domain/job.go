package domain

import "time"

// Posting is one job posting as collected from the portal.
type Posting struct {
	PortalID    string     `json:"portal_id"` // portal's own job id, unique per posting
	Title       string     `json:"title"`
	CompanyName string     `json:"company"`
	LocationRaw string     `json:"location"`
	WorkMode    string     `json:"work_mode"` // Remote/Hybrid/Onsite/Unknown
	URL         string     `json:"url"`
	EasyApply   bool       `json:"easy_apply"`
	Description string     `json:"description,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	Source      string     `json:"source"` // search/alert
}

// ScreenVerdict is the combined outcome of keyword and LLM screening.
type ScreenVerdict struct {
	KeywordScore int      `json:"keyword_score"`
	Tags         []string `json:"tags,omitempty"`
	FitScore     int      `json:"fit_score"` // 0-100, from the LLM stage
	Apply        bool     `json:"apply"`
	Reasons      []string `json:"reasons,omitempty"`
	Missing      []string `json:"missing,omitempty"`
	LLMSkipped   bool     `json:"llm_skipped,omitempty"` // budget denied or disabled
}

// Application records one submitted (or attempted) Easy Apply.
type Application struct {
	PortalID    string        `json:"portal_id"`
	Title       string        `json:"title"`
	CompanyName string        `json:"company"`
	URL         string        `json:"url"`
	Status      string        `json:"status"` // applied/failed/skipped
	Reason      string        `json:"reason,omitempty"`
	Verdict     ScreenVerdict `json:"verdict"`
	AppliedAt   time.Time     `json:"applied_at"`
}

// OutreachDraft is a recruiter message drafted by the LLM, queued for
// manual review. Never sent automatically.
type OutreachDraft struct {
	ID            string    `json:"id"`
	PortalID      string    `json:"portal_id"`
	CompanyName   string    `json:"company"`
	Title         string    `json:"title"`
	Subject       string    `json:"subject"`
	Message       string    `json:"message"`
	TalkingPoints []string  `json:"talking_points,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)
