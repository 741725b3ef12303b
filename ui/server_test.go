package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lassoc/app"
	"lassoc/internal/config"
	"lassoc/internal/testkit"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	svc := app.NewAnalysisService(testkit.DrugRecoveryFrame(), nil, config.AnalysisConfig{
		Iterations: 200,
		Seed:       42,
		Workers:    2,
		Adjustment: "bh",
	})
	return NewServer(svc, "test")
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	w := doJSON(t, testServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Variables(t *testing.T) {
	w := doJSON(t, testServer(t), http.MethodGet, "/api/variables", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Rows      int `json:"rows"`
		Variables []struct {
			Key         string `json:"key"`
			Cardinality int    `json:"cardinality"`
		} `json:"variables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 100, body.Rows)
	require.Len(t, body.Variables, 2)
	assert.Equal(t, "drug", body.Variables[0].Key)
	assert.Equal(t, 2, body.Variables[0].Cardinality)
}

func TestServer_Analyze(t *testing.T) {
	w := doJSON(t, testServer(t), http.MethodPost, "/api/analyses", map[string]interface{}{
		"variables": []string{"drug", "recovered"},
		"measure":   "z",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Measure string    `json:"measure"`
		Global  float64   `json:"global"`
		Local   []float64 `json:"local"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "z", body.Measure)
	assert.InDelta(t, 0.36, body.Global, 1e-9)
	assert.Len(t, body.Local, 4)
}

func TestServer_AnalyzeBadRequests(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/analyses", map[string]interface{}{
		"variables": []string{"drug", "recovered"},
		"measure":   "correlation",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/analyses", map[string]interface{}{
		"variables": []string{"drug", "age"},
		"measure":   "z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/analyses", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Permutation(t *testing.T) {
	w := doJSON(t, testServer(t), http.MethodPost, "/api/permutation", map[string]interface{}{
		"variables":  []string{"drug", "recovered"},
		"measure":    "z",
		"iterations": 200,
		"seed":       7,
		"workers":    2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		PGlobal    float64 `json:"p_global"`
		Iterations int     `json:"iterations"`
		Adjustment string  `json:"adjustment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 200, body.Iterations)
	assert.Equal(t, "bh", body.Adjustment)
	assert.Less(t, body.PGlobal, 0.05)
}

func TestServer_Subgroups(t *testing.T) {
	w := doJSON(t, testServer(t), http.MethodPost, "/api/subgroups", map[string]interface{}{
		"variables": []string{"drug", "recovered"},
		"measure":   "z",
		"key":       "response",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Column struct {
			Key string `json:"key"`
		} `json:"column"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "response", body.Column.Key)
	assert.Equal(t, 80, body.Counts["positive"])
	assert.Equal(t, 20, body.Counts["negative"])
}

func TestServer_ResultsRequireRepository(t *testing.T) {
	w := doJSON(t, testServer(t), http.MethodGet, "/api/analyses", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
