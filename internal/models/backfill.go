package models

import "time"

// Decision is the outcome recorded for one work item in a backfill run.
type Decision string

const (
	DecisionUpdated Decision = "updated"
	DecisionSkipped Decision = "skipped"
)

// BackfillDecision is the audit record for one processed work item.
type BackfillDecision struct {
	ID            string       `db:"id" json:"-"`
	RunID         string       `db:"runId" json:"runId"`
	Kind          WorkItemKind `db:"kind" json:"kind"`
	WorkItemID    string       `db:"workItemId" json:"workItemId"`
	CityID        string       `db:"cityId" json:"cityId"`
	RequestedByID *string      `db:"requestedById" json:"requestedById,omitempty"`
	Decision      Decision     `db:"decision" json:"decision"`
	Reason        string       `db:"reason" json:"reason,omitempty"`
	Detail        string       `db:"detail" json:"detail,omitempty"`
	ZoneID        *string      `db:"zoneId" json:"zoneId,omitempty"`
	WardID        *string      `db:"wardId" json:"wardId,omitempty"`
	DecidedAt     time.Time    `db:"decidedAt" json:"decidedAt"`
}

// BackfillSummary closes a run.
type BackfillSummary struct {
	RunID      string             `json:"runId"`
	Kind       WorkItemKind       `json:"kind"`
	CityID     string             `json:"cityId,omitempty"`
	Strict     bool               `json:"strictHierarchy"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Scanned    int                `json:"scanned"`
	Updated    int                `json:"updated"`
	Skipped    int                `json:"skipped"`
	Reasons    map[string]int     `json:"reasons"`
	Aborted    bool               `json:"aborted"`
	Decisions  []BackfillDecision `json:"decisions,omitempty"`
}

// Record folds a decision into the summary counts and keeps it in Decisions.
func (s *BackfillSummary) Record(d BackfillDecision) {
	s.Tally(d)
	s.Decisions = append(s.Decisions, d)
}

// Tally folds a decision into the summary counts only.
func (s *BackfillSummary) Tally(d BackfillDecision) {
	s.Scanned++
	switch d.Decision {
	case DecisionUpdated:
		s.Updated++
	default:
		s.Skipped++
	}
	if d.Reason != "" {
		if s.Reasons == nil {
			s.Reasons = map[string]int{}
		}
		s.Reasons[d.Reason]++
	}
}

// WithoutDecisions returns a copy of the summary with the per-item decisions
// dropped. The receiver is not modified.
func (s *BackfillSummary) WithoutDecisions() *BackfillSummary {
	trimmed := *s
	trimmed.Decisions = nil
	return &trimmed
}

// ReviewerPending reports a QC reviewer's pending work within their scope.
type ReviewerPending struct {
	UserID         string   `json:"qcId"`
	Email          string   `json:"email"`
	ZoneIDs        []string `json:"zoneIds"`
	WardIDs        []string `json:"wardIds"`
	PendingInScope int      `json:"pendingInScope"`
}

// PendingReport summarises pending QC work for a city and module.
type PendingReport struct {
	Kind         WorkItemKind `json:"kind"`
	CityID       string       `json:"cityId"`
	ModuleName   string       `json:"module"`
	ModuleID     string       `json:"moduleId"`
	TotalItems   int          `json:"totalItems"`
	TotalPending int          `json:"totalPending"`

	// PendingMissingLocation counts pending items no reviewer can see because
	// their zone or ward is unset.
	PendingMissingLocation int `json:"pendingMissingLocation"`

	// PendingUnreachable counts pending items outside every reviewer's scope,
	// including those missing a location.
	PendingUnreachable int `json:"pendingUnreachable"`

	Reviewers []ReviewerPending `json:"reviewers"`
}
