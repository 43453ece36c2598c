package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/rodrigomiquilino/wwm-review/internal/cache"
	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	"github.com/rodrigomiquilino/wwm-review/internal/config"
	"github.com/rodrigomiquilino/wwm-review/internal/corpus"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/internal/glossary"
	"github.com/rodrigomiquilino/wwm-review/internal/review"
	"github.com/rodrigomiquilino/wwm-review/pkg/log"
)

// hubBranch is where the published site, glossary snapshot included, lives.
const hubBranch = "main"

// ContentService fetches raw repository files.
type ContentService interface {
	FetchRawFile(ctx context.Context, repo, branch, path string) (string, error)
}

// ReportService files and lists the automated consistency issues.
type ReportService interface {
	ListIssues(ctx context.Context, opts github.ListIssuesOptions) ([]github.Issue, error)
	CreateIssue(ctx context.Context, req github.CreateIssueRequest) (*github.Issue, error)
}

// State is one consistent snapshot of the loaded corpora: the reviewable
// worklist, its duplicate groups, the glossary and the NPC name mismatches
// found during the load.
type State struct {
	Units      []corpus.TranslationUnit `json:"units"`
	Duplicates corpus.DuplicateIndex    `json:"duplicates"`
	Glossary   *glossary.Glossary       `json:"glossary"`
	Mismatches []glossary.Mismatch      `json:"mismatches"`
	LoadedAt   time.Time                `json:"loadedAt"`
}

// Hub owns the in-memory review state and its periodic refresh. Everything
// the HTTP layer reads comes from here; writes go through the cart and the
// review submitter.
type Hub struct {
	cfg     config.Config
	content ContentService
	reports ReportService
	cart    *cart.Cart
	cache   *cache.Cache
	cron    *cron.Cron

	refreshGroup singleflight.Group

	mu      sync.RWMutex
	state   State
	matcher *glossary.Matcher
	byID    map[string]corpus.TranslationUnit
}

func NewHub(cfg config.Config, content ContentService, reports ReportService, c *cart.Cart, readCache *cache.Cache, cronEngine *cron.Cron) *Hub {
	return &Hub{
		cfg:     cfg,
		content: content,
		reports: reports,
		cart:    c,
		cache:   readCache,
		cron:    cronEngine,
		matcher: glossary.NewMatcher(nil),
		byID:    make(map[string]corpus.TranslationUnit),
	}
}

// Schedule loads the corpora once and registers the periodic refresh.
func (h *Hub) Schedule(ctx context.Context) error {
	log.Info("Run review hub")

	if err := h.Refresh(ctx); err != nil {
		// The first load may race a network outage; the cron retries.
		log.Error("Initial corpus load failed: %v", err)
	}

	_, err := h.cron.AddFunc(h.cfg.Translation.CronExpr, func() { h.scheduledRefresh(ctx) })
	return err
}

// scheduledRefresh is the cron body. Overlapping runs on the same hub
// coalesce through its singleflight group.
func (h *Hub) scheduledRefresh(ctx context.Context) {
	_, _, _ = h.refreshGroup.Do("refresh", func() (any, error) {
		if err := h.Refresh(ctx); err != nil {
			log.Error("Scheduled corpus refresh failed: %v", err)
			return nil, nil
		}
		// Filing issues needs a token; without one the report stays local.
		if h.cfg.GitHub.Token != "" {
			if _, err := h.EnsureConsistencyReport(ctx); err != nil {
				log.Error("Consistency report failed: %v", err)
			}
		}
		return nil, nil
	})
}

// Refresh re-reads both corpora and the glossary snapshot and swaps in a
// fresh state. The three fetches run concurrently; a glossary failure
// degrades to term-less operation instead of failing the refresh.
func (h *Hub) Refresh(ctx context.Context) error {
	var sourceRaw, targetRaw, glossaryRaw string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sourceRaw, err = h.fetchCached(gctx, h.cfg.Translation.Repo, h.cfg.Translation.Branch, h.cfg.Translation.SourceFile)
		return err
	})
	g.Go(func() (err error) {
		targetRaw, err = h.fetchCached(gctx, h.cfg.Translation.Repo, h.cfg.Translation.Branch, h.cfg.Translation.TargetFile)
		return err
	})
	g.Go(func() error {
		hubRepo := fmt.Sprintf("%s/%s", h.cfg.GitHub.Owner, h.cfg.GitHub.Repo)
		raw, err := h.fetchCached(gctx, hubRepo, hubBranch, h.cfg.Translation.GlossaryFile)
		if err != nil {
			log.Warn("Glossary unavailable, continuing without terms: %v", err)
			return nil
		}
		glossaryRaw = raw
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load corpora: %w", err)
	}

	source := corpus.ParseTSV(sourceRaw)
	localized := corpus.ParseTSV(targetRaw)
	allUnits := corpus.ComputeStatus(source, localized)

	var gloss *glossary.Glossary
	if glossaryRaw != "" {
		parsed, err := glossary.Parse([]byte(glossaryRaw))
		if err != nil {
			log.Warn("Glossary snapshot is malformed, continuing without terms: %v", err)
		} else {
			gloss = parsed
		}
	}
	if h.cfg.Data.Dir != "" {
		if gloss != nil {
			if err := glossary.Save(h.glossaryMirrorPath(), gloss); err != nil {
				log.Warn("Could not mirror glossary to disk: %v", err)
			}
		} else if saved, err := glossary.Load(h.glossaryMirrorPath()); err == nil {
			log.Warn("Serving the last glossary mirrored on disk")
			gloss = saved
		}
	}
	matcher := glossary.NewMatcher(gloss)

	// Protected names need no translation work; the mismatch scan sees them,
	// the worklist does not.
	mismatches := matcher.CheckConsistency(allUnits)
	worklist := make([]corpus.TranslationUnit, 0, len(allUnits))
	byID := make(map[string]corpus.TranslationUnit, len(allUnits))
	for _, u := range allUnits {
		byID[u.ID] = u
		if matcher.IsExcludedName(u.SourceText) {
			continue
		}
		worklist = append(worklist, u)
	}

	h.mu.Lock()
	h.state = State{
		Units:      worklist,
		Duplicates: corpus.BuildDuplicateIndex(worklist),
		Glossary:   gloss,
		Mismatches: mismatches,
		LoadedAt:   time.Now(),
	}
	h.matcher = matcher
	h.byID = byID
	h.mu.Unlock()

	log.Info("Loaded %d reviewable units (%d NPC name mismatches)", len(worklist), len(mismatches))
	return nil
}

// glossaryMirrorPath is the on-disk copy of the last good glossary fetch,
// kept so a restart during a hub outage still knows the protected names.
func (h *Hub) glossaryMirrorPath() string {
	return filepath.Join(h.cfg.Data.Dir, "glossary.json")
}

func (h *Hub) fetchCached(ctx context.Context, repo, branch, path string) (string, error) {
	key := fmt.Sprintf("raw:%s/%s/%s", repo, branch, path)
	return cache.Fetch(ctx, h.cache, key, func(ctx context.Context) (string, error) {
		return h.content.FetchRawFile(ctx, repo, branch, path)
	})
}

// Cart returns the shared suggestion cart.
func (h *Hub) Cart() *cart.Cart {
	return h.cart
}

// Snapshot returns the current state. Callers must treat it as read-only.
func (h *Hub) Snapshot() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Unit returns the loaded unit for id, including excluded ones.
func (h *Hub) Unit(id string) (corpus.TranslationUnit, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	u, ok := h.byID[id]
	return u, ok
}

// DuplicatesOf returns the duplicate group sharing the given source text.
func (h *Hub) DuplicatesOf(sourceText string) []corpus.DuplicateRef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Duplicates.Lookup(sourceText)
}

// TermsFor returns glossary terms appearing in the given source text.
func (h *Hub) TermsFor(text string) []glossary.Term {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.matcher.FindTerms(text)
}

// AddSuggestion validates a proposed edit against the loaded state and puts
// it in the cart. With applyToDuplicates it fans the same suggestion out to
// every unit sharing the source text. Returns how many entries landed.
func (h *Hub) AddSuggestion(entry cart.Entry, applyToDuplicates bool) (int, error) {
	h.mu.RLock()
	matcher := h.matcher
	unit, ok := h.byID[entry.ID]
	byID := h.byID
	h.mu.RUnlock()

	// An id the loaded corpus does not know would serialize with line 0 and
	// misdirect the downstream applier.
	if !ok {
		return 0, fmt.Errorf("no loaded line with id %q", entry.ID)
	}
	entry.SourceText = unit.SourceText
	entry.PriorText = unit.LocalizedText
	entry.LineNumber = unit.LineNumber
	refs := h.DuplicatesOf(unit.SourceText)

	if matcher.IsExcludedName(entry.SourceText) {
		return 0, fmt.Errorf("%q is a protected name and must stay as-is", entry.SourceText)
	}
	h.warnOnLanguageDrift(entry.Suggestion)

	if !applyToDuplicates || len(refs) <= 1 {
		if err := h.cart.Add(entry); err != nil {
			return 0, err
		}
		return 1, nil
	}

	bulk := make([]cart.Entry, 0, len(refs))
	for _, ref := range refs {
		unit, ok := byID[ref.ID]
		if !ok {
			continue
		}
		bulk = append(bulk, cart.Entry{
			ID:         unit.ID,
			SourceText: unit.SourceText,
			PriorText:  unit.LocalizedText,
			Suggestion: entry.Suggestion,
			LineNumber: unit.LineNumber,
		})
	}
	return h.cart.AddBulk(bulk)
}

// warnOnLanguageDrift flags suggestions that do not look like the target
// language. Advisory only: short strings and proper nouns misdetect too
// often to make this a hard rule.
func (h *Hub) warnOnLanguageDrift(suggestion string) {
	info := whatlanggo.Detect(suggestion)
	if !info.IsReliable() {
		return
	}
	base, confidence := h.cfg.Translation.TargetLanguage.Base()
	if confidence == language.No {
		return
	}
	if whatlanggo.LangToString(info.Lang) != base.ISO3() {
		log.Warn("Suggestion %q detected as %s, expected %s", suggestion, whatlanggo.Langs[info.Lang], base.ISO3())
	}
}

// EnsureConsistencyReport files one automated review issue for the current
// NPC name mismatches. An already-open report suppresses a new one, so the
// tracker does not fill with duplicates between fixes.
func (h *Hub) EnsureConsistencyReport(ctx context.Context) (*github.Issue, error) {
	h.mu.RLock()
	mismatches := h.state.Mismatches
	h.mu.RUnlock()

	if len(mismatches) == 0 {
		return nil, nil
	}

	open, err := h.reports.ListIssues(ctx, github.ListIssuesOptions{
		State:   "open",
		Labels:  review.LabelNPCReview,
		PerPage: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("check open consistency reports: %w", err)
	}
	if len(open) > 0 {
		log.Info("Consistency report #%d is still open, skipping", open[0].Number)
		return nil, nil
	}

	title, body := glossary.RenderReport(mismatches, h.cfg.Translation.TargetFile)
	issue, err := h.reports.CreateIssue(ctx, github.CreateIssueRequest{
		Title:  title,
		Body:   body,
		Labels: []string{review.LabelNPCReview, review.LabelAutomated},
	})
	if err != nil {
		return nil, fmt.Errorf("file consistency report: %w", err)
	}
	log.Info("Filed consistency report #%d with %d mismatch(es)", issue.Number, len(mismatches))
	return issue, nil
}
