package db

import (
	"context"
	"strings"

	"policyportal/internal/types"
)

// obligationSource describes how one portal table maps onto types.Obligation.
// status normalizes the table's own lifecycle column to open/completed/cancelled.
type obligationSource struct {
	table    string
	title    string
	assignee string
	status   string
	// path is the portal page for the record, relative to the portal URL.
	path string
}

var obligationSources = map[types.SubjectType]obligationSource{
	types.SubjectPolicyAcknowledgement: {
		table:    "policy_acknowledgements",
		title:    "policy_title",
		assignee: "user_id",
		status:   `CASE WHEN acknowledged_at IS NOT NULL THEN 'completed' WHEN revoked_at IS NOT NULL THEN 'cancelled' ELSE 'open' END`,
		path:     "policies/acknowledgements",
	},
	types.SubjectTaskAssignment: {
		table:    "task_assignments",
		title:    "title",
		assignee: "assignee_id",
		status:   `CASE status WHEN 'completed' THEN 'completed' WHEN 'cancelled' THEN 'cancelled' ELSE 'open' END`,
		path:     "tasks",
	},
	types.SubjectApproval: {
		table:    "approvals",
		title:    "title",
		assignee: "approver_id",
		status:   `CASE status WHEN 'pending' THEN 'open' WHEN 'withdrawn' THEN 'cancelled' ELSE 'completed' END`,
		path:     "approvals",
	},
}

// ObligationRepository reads policy acknowledgements, task assignments and
// approvals from the portal record store.
type ObligationRepository struct {
	db        DBTX
	portalURL string
}

func NewObligationRepository(db DBTX) *ObligationRepository {
	return &ObligationRepository{db: db}
}

// WithPortalURL fills in a link to the portal page for records whose url
// column is empty.
func (r *ObligationRepository) WithPortalURL(base string) *ObligationRepository {
	r.portalURL = strings.TrimRight(base, "/")
	return r
}

// Get returns the obligation, or a not_found_obligation AppError.
func (r *ObligationRepository) Get(ctx context.Context, subjectType types.SubjectType, id string) (*types.Obligation, error) {
	src, ok := obligationSources[subjectType]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationSubjectType, "unknown subject type "+string(subjectType), nil)
	}

	o := types.Obligation{SubjectType: subjectType}
	var status string
	var url *string
	err := r.db.QueryRow(ctx,
		`SELECT id, `+src.title+`, `+src.assignee+`, `+src.status+`, due_date, url
		 FROM `+src.table+`
		 WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Title, &o.AssigneeID, &status, &o.DueDate, &url)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundObligation, "obligation not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load obligation", err)
	}
	o.Status = types.ObligationStatus(status)
	switch {
	case url != nil && *url != "":
		o.URL = *url
	case r.portalURL != "":
		o.URL = r.portalURL + "/" + src.path + "/" + o.ID
	}
	return &o, nil
}
