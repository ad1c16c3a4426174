package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/robotdriver/pkg/browser"
	"github.com/entrhq/robotdriver/pkg/catalog"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/driver"
	"github.com/entrhq/robotdriver/pkg/goal"
	"github.com/entrhq/robotdriver/pkg/htmlpage"
	"github.com/entrhq/robotdriver/pkg/remote"
)

type stubSearch struct {
	creds   driver.Credentials
	product string
	result  catalog.Result
}

func (s *stubSearch) Run(_ context.Context, creds driver.Credentials, product string) catalog.Result {
	s.creds, s.product = creds, product
	return s.result
}

type stubGoals struct{}

func (stubGoals) Run(_ context.Context, text string) (driver.GoalOutcome, error) {
	intent, err := goal.NewParser("https://shop.test").Parse(text)
	if err != nil {
		return driver.GoalOutcome{Goal: text, Error: err.Error()}, err
	}
	return driver.GoalOutcome{Goal: text, Intent: intent, Result: catalog.NotFound(intent.TargetPhrase)}, nil
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReportsOpenPages(t *testing.T) {
	pool, err := browser.NewPool(t.Context(), config.BrowserConfig{Engine: config.EngineStatic}, nil)
	require.NoError(t, err)
	defer pool.Close()

	_, release, err := pool.Open(t.Context())
	require.NoError(t, err)
	defer release()

	rec := httptest.NewRecorder()
	New(Options{Pages: pool}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status   string `json:"status"`
		Engine   string `json:"engine"`
		Sessions []struct {
			Name       string `json:"name"`
			CurrentURL string `json:"current_url"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "static", health.Engine)
	require.Len(t, health.Sessions, 1)
	assert.Equal(t, "about:blank", health.Sessions[0].CurrentURL)
	assert.NotEmpty(t, health.Sessions[0].Name)
}

func TestSearch(t *testing.T) {
	search := &stubSearch{result: catalog.Found(catalog.ProductRecord{
		Name: "Rs. 1000", Price: "Rs. 1000", Description: "Sleeveless Dress",
	})}
	srv := New(Options{Search: search})

	rec := post(t, srv, "/search", `{"username":"user@test","password":"secret","product":" dress "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","product_name":"Rs. 1000","price":"Rs. 1000","description":"Sleeveless Dress"}`,
		rec.Body.String())
	assert.Equal(t, driver.Credentials{Username: "user@test", Password: "secret"}, search.creds)
	assert.Equal(t, "dress", search.product)
}

func TestSearchLoginFailure(t *testing.T) {
	srv := New(Options{Search: &stubSearch{result: catalog.Failed("Invalid login credentials")}})

	rec := post(t, srv, "/search", `{"username":"user@test","password":"nope","product":"dress"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Invalid login credentials"}`, rec.Body.String())
}

func TestBadRequests(t *testing.T) {
	srv := New(Options{Search: &stubSearch{}, Goals: stubGoals{}, Pages: htmlpage.NewBrowser(nil, 0), MaxBodyBytes: 128})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		error  string
	}{
		{"malformed json", "/search", `{"product":`, http.StatusBadRequest, "invalid JSON body"},
		{"missing product", "/search", `{"username":"u","password":"p"}`, http.StatusBadRequest, "product is required"},
		{"missing credentials", "/search", `{"product":"dress"}`, http.StatusBadRequest, "username and password are required"},
		{"missing goal", "/goal", `{}`, http.StatusBadRequest, "goal is required"},
		{"unparseable goal", "/goal", `{"goal":"hello there"}`, http.StatusUnprocessableEntity, "cannot parse goal"},
		{"relative url", "/context", `{"url":"/products"}`, http.StatusBadRequest, "absolute http(s) URL"},
		{"ftp url", "/context", `{"url":"ftp://shop.test"}`, http.StatusBadRequest, "absolute http(s) URL"},
		{"body too large", "/goal", `{"goal":"` + strings.Repeat("x", 200) + `"}`, http.StatusRequestEntityTooLarge, "exceeds 128 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.error)
		})
	}
}

func TestDisabledEndpoints(t *testing.T) {
	srv := New(Options{})
	for _, path := range []string{"/context", "/search", "/goal"} {
		rec := post(t, srv, path, `{}`)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}

func TestGoal(t *testing.T) {
	rec := post(t, New(Options{Goals: stubGoals{}}), "/goal", `{"goal":"find jeans"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, map[string]any{"target_phrase": "jeans", "url": "https://shop.test"}, body["intent"])
	assert.Equal(t, map[string]any{"status": "not_found", "message": "product 'jeans' not found"}, body["result"])
}

const shopHTML = `<html><head><title>Shop</title></head><body>
<nav><a href="/">Home</a></nav>
<input id="search_product" type="text" aria-label="Search">
<button id="submit_search">Go</button>
</body></html>`

// TestContextServesRemoteClient checks that a remote.Client can use this
// server as its context service.
func TestContextServesRemoteClient(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, shopHTML)
	}))
	defer site.Close()

	api := httptest.NewServer(New(Options{Pages: htmlpage.NewBrowser(site.Client().Transport, time.Second)}))
	defer api.Close()

	snap, err := remote.NewClient(5*time.Second).Fetch(t.Context(), api.URL, site.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, site.URL+"/", snap.URL)
	require.NoError(t, snap.Validate())

	var hints []string
	for _, el := range snap.Interactive() {
		hints = append(hints, el.SelectorHint)
	}
	assert.Equal(t, []string{"a:1", "#search_product", "#submit_search"}, hints)
	assert.NotEmpty(t, snap.Accessibility())
}

func TestContextUnreachablePage(t *testing.T) {
	site := httptest.NewServer(http.NotFoundHandler())
	defer site.Close()

	srv := New(Options{Pages: htmlpage.NewBrowser(site.Client().Transport, time.Second)})
	rec := post(t, srv, "/context", fmt.Sprintf(`{"url":%q}`, site.URL+"/gone"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// TestGoalEndToEnd pursues a goal against a plain HTML shop through the
// static engine.
func TestGoalEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form action="/results">
			<input type="search" name="q" class="search-field"></form></body></html>`)
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="features_items">`)
		if strings.Contains("sleeveless dress", strings.ToLower(r.URL.Query().Get("q"))) {
			fmt.Fprint(w, `<div class="productinfo"><h2>Rs. 1000</h2><p>Sleeveless Dress</p></div>`)
		}
		fmt.Fprint(w, `</div></body></html>`)
	})
	site := httptest.NewServer(mux)
	defer site.Close()

	cfg := config.Default()
	cfg.Site.BaseURL = site.URL
	runner, err := driver.NewGoalRunner(cfg, htmlpage.NewBrowser(site.Client().Transport, time.Second), nil, nil)
	require.NoError(t, err)

	rec := post(t, New(Options{Goals: runner}), "/goal", `{"goal":"Find sleeveless dress."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "input.search-field", body["search_control"])
	assert.Equal(t, "local", body["snapshot_origin"])
	assert.Equal(t, map[string]any{
		"status":       "success",
		"product_name": "Rs. 1000",
		"price":        "Rs. 1000",
		"description":  "Sleeveless Dress",
	}, body["result"])
}
