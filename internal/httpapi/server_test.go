package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/rodrigomiquilino/wwm-review/internal/access"
	"github.com/rodrigomiquilino/wwm-review/internal/cache"
	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	"github.com/rodrigomiquilino/wwm-review/internal/config"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/internal/review"
	"github.com/rodrigomiquilino/wwm-review/internal/service"
)

type memBackend struct {
	data    map[string]string
	created map[string]time.Time
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string), created: make(map[string]time.Time)}
}

func (b *memBackend) CacheGet(key string) (string, time.Time, bool, error) {
	data, ok := b.data[key]
	return data, b.created[key], ok, nil
}

func (b *memBackend) CacheSet(key, data string) error {
	b.data[key] = data
	b.created[key] = time.Now()
	return nil
}

func (b *memBackend) CacheDelete(key string) error {
	delete(b.data, key)
	delete(b.created, key)
	return nil
}

// fakeGitHub backs every GitHub-facing interface the stack needs.
type fakeGitHub struct {
	files   map[string]string
	issues  []github.Issue
	created []github.CreateIssueRequest
}

func (f *fakeGitHub) FetchRawFile(_ context.Context, repo, branch, path string) (string, error) {
	content, ok := f.files[repo+"/"+branch+"/"+path]
	if !ok {
		return "", fmt.Errorf("not found: %s", path)
	}
	return content, nil
}

func (f *fakeGitHub) CurrentUser(context.Context) (*github.User, error) {
	return &github.User{Login: "contributor", ID: 1}, nil
}

func (f *fakeGitHub) ListIssues(_ context.Context, opts github.ListIssuesOptions) ([]github.Issue, error) {
	var out []github.Issue
	for _, issue := range f.issues {
		if opts.State != "" && issue.State != opts.State {
			continue
		}
		if opts.Labels != "" && !issue.HasLabel(opts.Labels) {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

func (f *fakeGitHub) CreateIssue(_ context.Context, req github.CreateIssueRequest) (*github.Issue, error) {
	f.created = append(f.created, req)
	return &github.Issue{Number: 100 + len(f.created), Title: req.Title, Body: req.Body, HTMLURL: "https://example.com/i"}, nil
}

func (f *fakeGitHub) GetIssue(_ context.Context, number int) (*github.Issue, error) {
	for i := range f.issues {
		if f.issues[i].Number == number {
			return &f.issues[i], nil
		}
	}
	return nil, &github.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeGitHub) UpdateIssue(_ context.Context, number int, req github.UpdateIssueRequest) (*github.Issue, error) {
	issue, err := f.GetIssue(context.Background(), number)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		issue.Body = *req.Body
	}
	if req.State != nil {
		issue.State = *req.State
	}
	return issue, nil
}

func (f *fakeGitHub) AddLabels(_ context.Context, number int, labels []string) error {
	issue, err := f.GetIssue(context.Background(), number)
	if err != nil {
		return err
	}
	for _, l := range labels {
		issue.Labels = append(issue.Labels, github.Label{Name: l})
	}
	return nil
}

func (f *fakeGitHub) CreateComment(context.Context, int, string) error {
	return nil
}

type staticGate struct{ denied bool }

func (g *staticGate) Authorize(context.Context) (*github.User, error) {
	if g.denied {
		return nil, access.ErrNotAuthorized
	}
	return &github.User{Login: "rodrigomiquilino", ID: 12345}, nil
}

func testStackConfig() config.Config {
	return config.Config{
		GitHub: config.GitHubConfig{Owner: "rodrigomiquilino", Repo: "wwm_brasileiro"},
		Translation: config.TranslationConfig{
			Repo:           "rodrigomiquilino/wwm_brasileiro_auto_path",
			Branch:         "dev",
			SourceFile:     "en.tsv",
			TargetFile:     "pt-br.tsv",
			GlossaryFile:   "docs/glossary.json",
			TargetLanguage: language.BrazilianPortuguese,
			CronExpr:       "*/15 * * * *",
		},
	}
}

func newTestServer(t *testing.T, gh *fakeGitHub, gate identityGate) (*Server, *service.Hub) {
	t.Helper()
	if gh.files == nil {
		gh.files = map[string]string{
			"rodrigomiquilino/wwm_brasileiro_auto_path/dev/en.tsv": "id\toriginalText\n" +
				"a1b2c3d4e5f60718\tHello\n" +
				"b2b2c3d4e5f60718\tHello\n" +
				"c3b2c3d4e5f60718\tGoodbye\n",
			"rodrigomiquilino/wwm_brasileiro_auto_path/dev/pt-br.tsv": "id\ttext\n" +
				"a1b2c3d4e5f60718\tOlá\n" +
				"b2b2c3d4e5f60718\t\n" +
				"c3b2c3d4e5f60718\t\n",
			"rodrigomiquilino/wwm_brasileiro/main/docs/glossary.json": `{"terms":[],"categories":{},"lastUpdated":"2026-09-01"}`,
		}
	}

	cfg := testStackConfig()
	backend := newMemBackend()
	c := cart.New(nil)
	hub := service.NewHub(cfg, gh, gh, c, cache.New(backend, 15*time.Minute), cron.New())
	require.NoError(t, hub.Refresh(context.Background()))

	submitter := review.NewSubmitter(gh, c, cache.New(backend, 5*time.Minute), cfg.Translation)

	var opts []Option
	if gate != nil {
		adjudicator := review.NewAdjudicator(gh, gate, cache.New(backend, 2*time.Minute))
		opts = append(opts, WithAdmin(adjudicator, gate))
	}
	return NewServer(hub, submitter, opts...), hub
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_ListUnits(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/units", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp unitsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Translated)
	assert.Len(t, resp.Units, 3)
}

func TestServer_ListUnits_Filters(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/units?status=untranslated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp unitsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Units, 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/units?q=goodbye", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Units, 1)
	assert.Equal(t, "c3b2c3d4e5f60718", resp.Units[0].ID)
}

func TestServer_UnitDuplicates(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/units/a1b2c3d4e5f60718/duplicates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Duplicates []struct {
			ID string `json:"id"`
		} `json:"duplicates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Duplicates, 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/units/unknown/duplicates", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CartLifecycle(t *testing.T) {
	srv, hub := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/cart", addSuggestionRequest{
		ID: "c3b2c3d4e5f60718", Suggestion: "Tchau",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, hub.Cart().Len())

	rec = doRequest(t, srv, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Entries []cart.Entry `json:"entries"`
		Count   int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Count)

	rec = doRequest(t, srv, http.MethodDelete, "/api/cart/c3b2c3d4e5f60718", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, hub.Cart().Len())

	rec = doRequest(t, srv, http.MethodDelete, "/api/cart/c3b2c3d4e5f60718", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CartBulkAdd(t *testing.T) {
	srv, hub := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/cart", addSuggestionRequest{
		ID: "a1b2c3d4e5f60718", Suggestion: "Oi", ApplyToDuplicates: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Added int `json:"added"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Added)
	assert.Equal(t, 2, hub.Cart().Len())
}

func TestServer_CartRejectsInvalidSuggestion(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/cart", addSuggestionRequest{
		ID: "a1b2c3d4e5f60718", Suggestion: "Olá",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_Submit(t *testing.T) {
	gh := &fakeGitHub{}
	srv, hub := newTestServer(t, gh, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/cart", addSuggestionRequest{
		ID: "c3b2c3d4e5f60718", Suggestion: "Tchau",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/submit", submitRequest{})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, gh.created, 1)
	assert.Equal(t, "[Tradução] Lote com 1 sugestão(ões)", gh.created[0].Title)
	assert.Equal(t, 0, hub.Cart().Len())
}

func TestServer_SubmitConflict(t *testing.T) {
	gh := &fakeGitHub{issues: []github.Issue{{
		Number: 7,
		State:  "open",
		Labels: []github.Label{{Name: review.LabelTranslation}},
		Body:   "contains `c3b2c3d4e5f60718` already",
	}}}
	srv, _ := newTestServer(t, gh, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/cart", addSuggestionRequest{
		ID: "c3b2c3d4e5f60718", Suggestion: "Tchau",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/submit", submitRequest{})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Conflicts []string `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"c3b2c3d4e5f60718"}, resp.Conflicts)
}

func TestServer_AdminDisabled(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/admin/requests", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	rec = doRequest(t, srv, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_AdminUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, &staticGate{denied: true})

	rec := doRequest(t, srv, http.MethodGet, "/api/admin/requests", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doRequest(t, srv, http.MethodPost, "/api/admin/requests/7/reject", rejectRequest{Reason: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_AdminApproveFlow(t *testing.T) {
	payload := &review.Payload{
		Version:      review.Version,
		Timestamp:    "2026-09-01T12:00:00Z",
		Total:        1,
		TargetRepo:   "rodrigomiquilino/wwm_brasileiro_auto_path",
		TargetBranch: "dev",
		Suggestions: []review.Suggestion{
			{ID: "c3b2c3d4e5f60718", File: "pt-br.tsv", Line: 4, Suggestion: "Tchau"},
		},
	}
	body, err := review.RenderBody(payload, "contributor")
	require.NoError(t, err)

	gh := &fakeGitHub{issues: []github.Issue{{
		Number: 7,
		State:  "open",
		Labels: []github.Label{{Name: review.LabelTranslation}},
		Body:   body,
	}}}
	srv, _ := newTestServer(t, gh, &staticGate{})

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/requests/7/approve", approveRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	issue, err := gh.GetIssue(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, issue.HasLabel(review.LabelApproved))
}

func TestServer_AdminReject(t *testing.T) {
	gh := &fakeGitHub{issues: []github.Issue{{
		Number: 7,
		State:  "open",
		Labels: []github.Label{{Name: review.LabelTranslation}},
	}}}
	srv, _ := newTestServer(t, gh, &staticGate{})

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/requests/7/reject", rejectRequest{Reason: "fora do tom"})
	require.Equal(t, http.StatusOK, rec.Code)

	issue, err := gh.GetIssue(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "closed", issue.State)
}

func TestServer_MethodChecks(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/units"},
		{http.MethodDelete, "/api/glossary"},
		{http.MethodGet, "/api/submit"},
		{http.MethodGet, "/api/refresh"},
		{http.MethodPut, "/api/cart"},
	} {
		rec := doRequest(t, srv, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestServer_Refresh(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGitHub{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
