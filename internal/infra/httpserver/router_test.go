package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aiapp "github.com/bryanwahyu/saqr/internal/application/ai"
	appinspections "github.com/bryanwahyu/saqr/internal/application/inspections"
	"github.com/bryanwahyu/saqr/internal/domain/ai"
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
	"github.com/bryanwahyu/saqr/internal/domain/zones"
	"github.com/bryanwahyu/saqr/internal/middleware"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }

type stubAnalyzer struct {
	answer aiapp.Answer
	err    error
}

func (s stubAnalyzer) AnalyzeWithFallback(context.Context, ai.Media, string, time.Duration) (aiapp.Answer, error) {
	return s.answer, s.err
}

type memRepo struct{ items []*inspection.Analysis }

func (m *memRepo) Save(_ context.Context, a *inspection.Analysis) error {
	m.items = append(m.items, a)
	return nil
}

func (m *memRepo) Get(_ context.Context, tenant string, id inspection.AnalysisID) (*inspection.Analysis, error) {
	for _, a := range m.items {
		if a.TenantID == tenant && a.ID == id {
			return a, nil
		}
	}
	return nil, inspection.ErrNotFound
}

func (m *memRepo) Paginate(_ context.Context, tenant string, page, pageSize int) ([]*inspection.Analysis, error) {
	return m.items, nil
}

func newServer(t *testing.T, an stubAnalyzer, opts Options) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := &memRepo{}
	svc := &appinspections.Service{
		Analyzer: an,
		Repo:     repo,
		Zones:    zones.NewCache(),
		Clock:    fixedClock{},
	}
	srv := httptest.NewServer(NewRouter(svc, opts))
	t.Cleanup(srv.Close)
	return srv, repo
}

func post(t *testing.T, url, key string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

var analyzePayload = map[string]any{
	"image": base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}),
	"specs": []map[string]string{{"code": "FL-05", "requirement": "Fire extinguisher present and tagged"}},
}

func TestAnalyze_ReturnsEnvelope(t *testing.T) {
	srv, repo := newServer(t, stubAnalyzer{answer: aiapp.Answer{
		Text:     `{"results":[{"specCode":"FL-05","found":true,"confidence":88,"result":"PASS","severity":"OK","finding":"Tag valid","findingAr":"الملصق صالح"}]}`,
		Provider: "gemini",
		Scale:    ai.ScalePercent,
	}}, Options{})

	resp := post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env inspection.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Degraded)
	assert.Equal(t, "gemini", env.Provider)
	require.Len(t, env.Results, 1)
	assert.Equal(t, inspection.VerdictPass, env.Results[0].Result)
	require.Len(t, repo.items, 1)
	assert.Equal(t, "acme", repo.items[0].TenantID)
}

func TestAnalyze_DegradedIsStill200(t *testing.T) {
	srv, _ := newServer(t, stubAnalyzer{err: ai.ErrConfigurationMissing}, Options{})

	resp := post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env inspection.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Degraded)
	assert.Equal(t, "CONFIGURATION_MISSING", env.Error.Code)
	assert.Equal(t, inspection.VerdictUncertain, env.Results[0].Result)
}

func TestAnalyze_ProviderQuotaIsDegradedNot429(t *testing.T) {
	srv, _ := newServer(t, stubAnalyzer{err: ai.FromStatus("gemini", http.StatusTooManyRequests, nil)}, Options{})

	resp := post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env inspection.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Degraded)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestAnalyze_BadRequests(t *testing.T) {
	srv, _ := newServer(t, stubAnalyzer{}, Options{MaxBodyBytes: 1024})

	cases := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"no image", map[string]any{"specs": analyzePayload["specs"]}, http.StatusBadRequest, "image is required"},
		{"no specs", map[string]any{"image": analyzePayload["image"]}, http.StatusBadRequest, "specs is required"},
		{"bad language", map[string]any{"image": analyzePayload["image"], "specs": analyzePayload["specs"], "language": "fr"}, http.StatusBadRequest, "language must be one of"},
		{"single-spec with two", map[string]any{
			"image": analyzePayload["image"],
			"mode":  "single-spec",
			"specs": []map[string]string{{"code": "A", "requirement": "a"}, {"code": "B", "requirement": "b"}},
		}, http.StatusBadRequest, "single-spec"},
		{"too large", map[string]any{"image": strings.Repeat("A", 4096), "specs": analyzePayload["specs"]}, http.StatusRequestEntityTooLarge, "exceeds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/v1/acme/inspections/analyze", "", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			var out map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Contains(t, out["error"], tc.msg)
		})
	}

	resp, err := http.Post(srv.URL+"/v1/acme/inspections/analyze", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyze_AuthAndTenant(t *testing.T) {
	srv, _ := newServer(t, stubAnalyzer{err: ai.ErrConfigurationMissing}, Options{APIKeys: map[string]string{"acme": "k1"}})

	assert.Equal(t, http.StatusUnauthorized, post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload).StatusCode)
	assert.Equal(t, http.StatusForbidden, post(t, srv.URL+"/v1/globex/inspections/analyze", "k1", analyzePayload).StatusCode)
	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/v1/acme/inspections/analyze", "k1", analyzePayload).StatusCode)

	resp, err := http.Get(srv.URL + "/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 0.01)
	defer limiter.Stop()
	srv, _ := newServer(t, stubAnalyzer{err: ai.ErrConfigurationMissing}, Options{RateLimiter: limiter})

	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload).StatusCode)
}

func TestListAndGet(t *testing.T) {
	srv, _ := newServer(t, stubAnalyzer{answer: aiapp.Answer{Text: `{"results":[]}`, Provider: "openai", Scale: ai.ScalePercent}}, Options{})

	resp := post(t, srv.URL+"/v1/acme/inspections/analyze", "", analyzePayload)
	var env inspection.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	list, err := http.Get(srv.URL + "/v1/acme/inspections/analyses?page=1&page_size=500")
	require.NoError(t, err)
	defer list.Body.Close()
	var page inspection.PaginatedAnalyses
	require.NoError(t, json.NewDecoder(list.Body).Decode(&page))
	assert.Equal(t, 100, page.PageSize)
	assert.Len(t, page.Data, 1)

	got, err := http.Get(srv.URL + "/v1/acme/inspections/analyses/" + env.AnalysisID)
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)

	missing, err := http.Get(srv.URL + "/v1/acme/inspections/analyses/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestScoreAndZones(t *testing.T) {
	srv, _ := newServer(t, stubAnalyzer{}, Options{})
	specs := []map[string]string{
		{"code": "KT-01", "requirement": "Kitchen hood clean"},
		{"code": "FL-05", "requirement": "Fire extinguisher present"},
	}

	resp := post(t, srv.URL+"/v1/acme/inspections/score", "", map[string]any{
		"specs": specs,
		"results": []map[string]any{
			{"specCode": "KT-01", "result": "PASS", "severity": "OK"},
			{"specCode": "FL-05", "result": "FAIL", "severity": "CRITICAL"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var score zones.ComplianceScore
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&score))
	assert.Equal(t, 50, score.Overall)
	assert.Len(t, score.PriorityActions, 1)

	resp = post(t, srv.URL+"/v1/acme/zones/assign", "", map[string]any{"specs": specs})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Assignments []zones.SpecZone `json:"assignments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Assignments, 2)
	assert.Equal(t, "kitchen", out.Assignments[0].ZoneID)
	assert.Equal(t, "safety", out.Assignments[1].ZoneID)
}
