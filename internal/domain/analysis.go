package domain

import "time"

// BulletRewrite pairs an original resume bullet with its improved version.
type BulletRewrite struct {
	Original string `json:"original"`
	Improved string `json:"improved"`
}

// Verdict is the structured evaluation returned by the model. The shape
// is fixed: a completion that does not decode into it is a failed
// analysis, never a partially accepted one.
type Verdict struct {
	OverallScore    int             `json:"overall_score"`
	ScoreVerdict    string          `json:"score_verdict,omitempty"`
	SummaryInsight  string          `json:"summary_insight,omitempty"`
	Strengths       []string        `json:"strengths"`
	Weaknesses      []string        `json:"weaknesses"`
	ATSIssues       []string        `json:"ats_issues"`
	ImprovedBullets []BulletRewrite `json:"improved_bullets"`
	Recommendations []string        `json:"recommendations"`
}

// Analysis is one persisted resume evaluation. ResumeExcerpt holds a
// bounded prefix of the submitted text for audit, not the full document.
// Records are immutable once written.
type Analysis struct {
	ID            string
	UserID        string
	ResumeExcerpt string
	Verdict       Verdict
	CreatedAt     time.Time
}
