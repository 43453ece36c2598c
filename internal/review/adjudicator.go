package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/cache"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/pkg/log"
)

// ErrAllRejected means every suggestion in the request was rejected; the
// request should be rejected as a whole instead of approved empty.
var ErrAllRejected = errors.New("review: every suggestion was rejected, reject the request instead")

// settleDelay is how long to wait between updating the issue body and
// adding the approval label. The label triggers the downstream applier, so
// the body edit must be visible first.
const settleDelay = 1500 * time.Millisecond

// AdminService is the slice of the GitHub client the adjudicator depends on.
type AdminService interface {
	GetIssue(ctx context.Context, number int) (*github.Issue, error)
	ListIssues(ctx context.Context, opts github.ListIssuesOptions) ([]github.Issue, error)
	UpdateIssue(ctx context.Context, number int, req github.UpdateIssueRequest) (*github.Issue, error)
	AddLabels(ctx context.Context, number int, labels []string) error
	CreateComment(ctx context.Context, number int, body string) error
}

// Authorizer guards privileged operations.
type Authorizer interface {
	Authorize(ctx context.Context) (*github.User, error)
}

// Decision is the reviewer's verdict on one suggestion. A zero Suggestion
// keeps the contributor's text; a different one replaces it and marks the
// entry as reviewer-edited.
type Decision struct {
	ID         string `json:"id"`
	Rejected   bool   `json:"rejected"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ApproveResult describes what an approval did to the request.
type ApproveResult struct {
	Issue    *github.Issue `json:"issue"`
	Applied  int           `json:"applied"`
	Edited   int           `json:"edited"`
	Rejected int           `json:"rejected"`
}

// Adjudicator executes the privileged half of the review lifecycle:
// approving requests (with per-suggestion edits and rejections folded into
// the payload) and rejecting them outright.
type Adjudicator struct {
	service    AdminService
	gate       Authorizer
	adminCache *cache.Cache
	sleep      func(time.Duration)
}

func NewAdjudicator(service AdminService, gate Authorizer, adminCache *cache.Cache) *Adjudicator {
	return &Adjudicator{
		service:    service,
		gate:       gate,
		adminCache: adminCache,
		sleep:      time.Sleep,
	}
}

// OpenRequests lists open review requests, cached briefly.
func (a *Adjudicator) OpenRequests(ctx context.Context) ([]github.Issue, error) {
	if _, err := a.gate.Authorize(ctx); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, a.adminCache, adminIssuesKey, func(ctx context.Context) ([]github.Issue, error) {
		return a.service.ListIssues(ctx, github.ListIssuesOptions{
			State:   "open",
			Labels:  LabelTranslation,
			PerPage: 100,
		})
	})
}

// AppliedRequests lists closed requests that went through approval.
func (a *Adjudicator) AppliedRequests(ctx context.Context) ([]github.Issue, error) {
	if _, err := a.gate.Authorize(ctx); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, a.adminCache, appliedIssuesKey, func(ctx context.Context) ([]github.Issue, error) {
		return a.service.ListIssues(ctx, github.ListIssuesOptions{
			State:   "closed",
			Labels:  LabelApproved,
			PerPage: 100,
		})
	})
}

// Approve folds the reviewer's decisions into the request payload and marks
// the issue approved. Suggestions without a decision are kept as-is. The
// issue body is re-fetched first so edits land on the current revision, not
// on whatever the admin screen had loaded.
func (a *Adjudicator) Approve(ctx context.Context, number int, decisions []Decision) (*ApproveResult, error) {
	if _, err := a.gate.Authorize(ctx); err != nil {
		return nil, err
	}

	issue, err := a.service.GetIssue(ctx, number)
	if err != nil {
		return nil, err
	}
	// The label triggers the applier; adding it twice would re-run the batch.
	if issue.HasLabel(LabelApproved) {
		return nil, fmt.Errorf("request #%d is already approved", number)
	}
	payload, err := ParseBody(issue.Body)
	if err != nil {
		return nil, fmt.Errorf("issue #%d: %w", number, err)
	}

	verdicts := make(map[string]Decision, len(decisions))
	for _, d := range decisions {
		verdicts[d.ID] = d
	}

	var kept []Suggestion
	var rejectedIDs []string
	edited := make(map[string]bool)
	for _, s := range payload.Suggestions {
		d, ok := verdicts[s.ID]
		if !ok {
			kept = append(kept, s)
			continue
		}
		if d.Rejected {
			rejectedIDs = append(rejectedIDs, s.ID)
			continue
		}
		if d.Suggestion != "" && d.Suggestion != s.Suggestion {
			s.Suggestion = d.Suggestion
			s.EditedByReviewer = true
			edited[s.ID] = true
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil, ErrAllRejected
	}

	if len(edited) > 0 || len(rejectedIDs) > 0 {
		payload.Suggestions = kept
		payload.Total = len(kept)

		body, err := ReplacePayload(issue.Body, payload)
		if err != nil {
			return nil, fmt.Errorf("issue #%d: %w", number, err)
		}
		body = UpdateSummary(body, payload, edited, rejectedIDs)

		if issue, err = a.service.UpdateIssue(ctx, number, github.UpdateIssueRequest{Body: &body}); err != nil {
			return nil, err
		}
		// Let the body edit become visible before the label fires the applier.
		a.sleep(settleDelay)
	}

	if err := a.service.AddLabels(ctx, number, []string{LabelApproved}); err != nil {
		return nil, err
	}
	log.Info("review: approved request #%d (%d applied, %d edited, %d rejected)",
		number, len(kept), len(edited), len(rejectedIDs))

	a.invalidate()
	return &ApproveResult{
		Issue:    issue,
		Applied:  len(kept),
		Edited:   len(edited),
		Rejected: len(rejectedIDs),
	}, nil
}

// Reject closes the request, relabels it rejected and leaves a comment with
// the reviewer's reason.
func (a *Adjudicator) Reject(ctx context.Context, number int, reason string) error {
	if _, err := a.gate.Authorize(ctx); err != nil {
		return err
	}

	comment := "❌ **Rejeitado pelo revisor**"
	if reason != "" {
		comment += "\n\n" + reason
	}
	if err := a.service.CreateComment(ctx, number, comment); err != nil {
		return err
	}

	closed := "closed"
	labels := []string{LabelRejected}
	if _, err := a.service.UpdateIssue(ctx, number, github.UpdateIssueRequest{
		State:  &closed,
		Labels: &labels,
	}); err != nil {
		return err
	}
	log.Info("review: rejected request #%d", number)

	a.invalidate()
	return nil
}

func (a *Adjudicator) invalidate() {
	a.adminCache.Invalidate(adminIssuesKey)
	a.adminCache.Invalidate(appliedIssuesKey)
	a.adminCache.Invalidate(pendingIDsCacheKey)
}
