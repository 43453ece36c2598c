package review

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/cache"
	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	"github.com/rodrigomiquilino/wwm-review/internal/config"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/pkg/log"
)

// Labels used on the hub repository's issues.
const (
	LabelTranslation     = "translation"
	LabelBatchSuggestion = "batch-suggestion"
	LabelApproved        = "approved"
	LabelRejected        = "rejected"
	LabelNPCReview       = "npc-review"
	LabelAutomated       = "automated"
)

// Cache keys shared between the submitter and the adjudicator.
const (
	pendingIDsCacheKey = "pending_suggestion_ids"
	adminIssuesKey     = "admin_open_issues"
	appliedIssuesKey   = "applied_issues"
)

// hexIDPattern matches backtick-quoted unit ids inside issue bodies. Ids
// are 16 lowercase hex characters, so the scan stays precise even over
// free-form prose.
var hexIDPattern = regexp.MustCompile("`([a-f0-9]{16})`")

// IssueService is the slice of the GitHub client the submitter depends on.
type IssueService interface {
	CurrentUser(ctx context.Context) (*github.User, error)
	ListIssues(ctx context.Context, opts github.ListIssuesOptions) ([]github.Issue, error)
	CreateIssue(ctx context.Context, req github.CreateIssueRequest) (*github.Issue, error)
}

// DuplicateConflictError reports cart entries whose units already sit in an
// open review request. The caller decides whether to skip or submit anyway.
type DuplicateConflictError struct {
	IDs []string
}

func (e *DuplicateConflictError) Error() string {
	return fmt.Sprintf("review: %d entries already pending review: %s", len(e.IDs), strings.Join(e.IDs, ", "))
}

// SubmitOptions controls how duplicate conflicts are handled.
type SubmitOptions struct {
	// SkipConflicting drops conflicting entries and submits the rest.
	SkipConflicting bool
	// AcknowledgeConflicts submits everything despite conflicts.
	AcknowledgeConflicts bool
}

// Submitter turns the suggestion cart into a hosted review request issue.
type Submitter struct {
	service      IssueService
	cart         *cart.Cart
	pendingCache *cache.Cache
	translation  config.TranslationConfig
	now          func() time.Time
}

func NewSubmitter(service IssueService, c *cart.Cart, pendingCache *cache.Cache, translation config.TranslationConfig) *Submitter {
	return &Submitter{
		service:      service,
		cart:         c,
		pendingCache: pendingCache,
		translation:  translation,
		now:          time.Now,
	}
}

// PendingIDs returns the ids of every unit referenced by an open review
// request, sorted. The scan is cached with a short TTL because it walks
// every open labeled issue.
func (s *Submitter) PendingIDs(ctx context.Context) ([]string, error) {
	return cache.Fetch(ctx, s.pendingCache, pendingIDsCacheKey, func(ctx context.Context) ([]string, error) {
		issues, err := s.service.ListIssues(ctx, github.ListIssuesOptions{
			State:   "open",
			Labels:  LabelTranslation,
			PerPage: 100,
		})
		if err != nil {
			return nil, fmt.Errorf("scan pending review requests: %w", err)
		}

		seen := make(map[string]struct{})
		for _, issue := range issues {
			for _, match := range hexIDPattern.FindAllStringSubmatch(issue.Body, -1) {
				seen[match[1]] = struct{}{}
			}
		}
		ids := make([]string, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, nil
	})
}

// CheckDuplicates returns the cart entry ids already present in an open
// review request, in cart order.
func (s *Submitter) CheckDuplicates(ctx context.Context) ([]string, error) {
	pending, err := s.PendingIDs(ctx)
	if err != nil {
		return nil, err
	}
	pendingSet := make(map[string]struct{}, len(pending))
	for _, id := range pending {
		pendingSet[id] = struct{}{}
	}

	var conflicts []string
	for _, entry := range s.cart.Entries() {
		if _, ok := pendingSet[entry.ID]; ok {
			conflicts = append(conflicts, entry.ID)
		}
	}
	return conflicts, nil
}

// Submit files the cart as a new review request issue and clears the cart
// on success. Conflicting entries block the submission unless opts says
// otherwise.
func (s *Submitter) Submit(ctx context.Context, opts SubmitOptions) (*github.Issue, error) {
	if s.cart.Len() == 0 {
		return nil, fmt.Errorf("review: cart is empty")
	}

	conflicts, err := s.CheckDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{})
	if len(conflicts) > 0 {
		switch {
		case opts.SkipConflicting:
			for _, id := range conflicts {
				skip[id] = struct{}{}
			}
		case opts.AcknowledgeConflicts:
			log.Warn("review: submitting %d entries already under review", len(conflicts))
		default:
			return nil, &DuplicateConflictError{IDs: conflicts}
		}
	}

	var suggestions []Suggestion
	for _, entry := range s.cart.Serialize(s.translation.TargetFile) {
		if _, ok := skip[entry.ID]; ok {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			ID:         entry.ID,
			File:       entry.File,
			Line:       entry.Line,
			Suggestion: entry.Suggestion,
		})
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("review: all cart entries are already under review")
	}

	user, err := s.service.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve author: %w", err)
	}

	payload := &Payload{
		Version:      Version,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		Total:        len(suggestions),
		TargetRepo:   s.translation.Repo,
		TargetBranch: s.translation.Branch,
		Suggestions:  suggestions,
	}
	body, err := RenderBody(payload, user.Login)
	if err != nil {
		return nil, err
	}

	issue, err := s.service.CreateIssue(ctx, github.CreateIssueRequest{
		Title:  Title(len(suggestions)),
		Body:   body,
		Labels: []string{LabelTranslation, LabelBatchSuggestion},
	})
	if err != nil {
		return nil, fmt.Errorf("file review request: %w", err)
	}
	log.Info("review: filed request #%d with %d suggestion(s)", issue.Number, len(suggestions))

	s.cart.Clear()
	s.pendingCache.Invalidate(pendingIDsCacheKey)
	return issue, nil
}
