package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/convtrain/summary"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	w, err := summary.NewWriter(dir, "batch_size = 8\n")
	require.NoError(t, err)
	for step, loss := range []float64{2.3, 1.9, 1.2} {
		require.NoError(t, w.AddScalar("Train/Loss", loss, int64(step*10)))
	}
	require.NoError(t, w.AddScalar("Evaluation/Test Precision", 0.5, 29))
	require.NoError(t, w.AddText("graph", "conv1", 0))
	require.NoError(t, w.Close())

	r, err := summary.OpenReader(summary.Path(dir))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return &Server{r: r}, w.RunID
}

func get(t *testing.T, h http.Handler, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestRuns(t *testing.T) {
	s, id := newTestServer(t)
	var resp struct {
		Runs []summary.Run `json:"runs"`
	}
	rec := get(t, s.Routes(), "/api/runs", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, id, resp.Runs[0].ID)
	assert.Equal(t, "batch_size = 8\n", resp.Runs[0].Config)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTags(t *testing.T) {
	s, _ := newTestServer(t)
	var resp struct {
		Tags []string `json:"tags"`
	}
	rec := get(t, s.Routes(), "/api/tags", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Evaluation/Test Precision", "Train/Loss"}, resp.Tags)
}

func TestScalars(t *testing.T) {
	s, id := newTestServer(t)
	var resp struct {
		Tag     string           `json:"tag"`
		Scalars []summary.Scalar `json:"scalars"`
	}
	rec := get(t, s.Routes(), "/api/scalars?tag=Train/Loss", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Scalars, 3)
	assert.Equal(t, "Train/Loss", resp.Tag)
	assert.Equal(t, id, resp.Scalars[2].Run)
	assert.Equal(t, int64(20), resp.Scalars[2].Step)
	assert.InDelta(t, 1.2, resp.Scalars[2].Value, 1e-12)

	rec = get(t, s.Routes(), "/api/scalars?tag=missing", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Scalars)
	assert.Contains(t, rec.Body.String(), `"scalars":[]`)

	rec = get(t, s.Routes(), "/api/scalars", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTexts(t *testing.T) {
	s, _ := newTestServer(t)
	var resp struct {
		Texts []summary.Text `json:"texts"`
	}
	rec := get(t, s.Routes(), "/api/texts?tag=graph", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Texts, 1)
	assert.Equal(t, "conv1", resp.Texts[0].Text)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestList(t *testing.T) {
	s, id := newTestServer(t)
	var b bytes.Buffer
	require.NoError(t, list(t.Context(), &b, s.r))
	out := b.String()
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Train/Loss")
	assert.Contains(t, out, "1.2000")
	assert.NotContains(t, out, "2.3000")
}
