package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dqcheck-cli/internal/report"
	"github.com/KaramelBytes/dqcheck-cli/internal/store"
)

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

var people = map[string]any{
	"fields": []string{"name", "city"},
	"records": []map[string]any{
		{"name": "John Smith", "city": "Boston"},
		{"name": "Jon Smith", "city": "Boston"},
		{"name": "Mary Jones", "city": "London"},
	},
}

func TestHealth(t *testing.T) {
	h := New(report.DefaultOptions(), nil).Router()
	w, body := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestDuplicates(t *testing.T) {
	h := New(report.DefaultOptions(), nil).Router()
	w, body := do(t, h, http.MethodPost, "/v1/duplicates", people)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []any{true, true, false}, body["mask"])
	pairs := body["pairs"].([]any)
	require.Len(t, pairs, 1)
	p := pairs[0].(map[string]any)
	assert.Equal(t, float64(1), p["group_id"])
	assert.Equal(t, float64(0), p["left_index"])
	assert.Equal(t, float64(1), p["right_index"])
	assert.InDelta(t, 97.2973, p["score"], 0.001)
	assert.Equal(t, "John Smith | Boston", p["left_preview"])
	assert.Equal(t, []any{"name", "city"}, body["columns"])
}

func TestDuplicatesOverrides(t *testing.T) {
	h := New(report.DefaultOptions(), nil).Router()
	req := map[string]any{"records": people["records"], "threshold": 100}
	_, body := do(t, h, http.MethodPost, "/v1/duplicates", req)
	assert.Empty(t, body["pairs"])

	req = map[string]any{"records": people["records"], "columns": []string{"name"}, "scorer": "ratio", "threshold": 90}
	w, body := do(t, h, http.MethodPost, "/v1/duplicates", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"name"}, body["columns"])
}

func TestDuplicatesInvalidParameters(t *testing.T) {
	h := New(report.DefaultOptions(), nil).Router()
	cases := map[string]map[string]any{
		"threshold": {"records": people["records"], "threshold": 150},
		"column":    {"records": people["records"], "columns": []string{"missing"}},
		"scorer":    {"records": people["records"], "scorer": "soundex"},
	}
	for param, req := range cases {
		t.Run(param, func(t *testing.T) {
			w, body := do(t, h, http.MethodPost, "/v1/duplicates", req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, param, body["param"])
			assert.NotEmpty(t, body["error"])
		})
	}

	w, _ := do(t, h, http.MethodPost, "/v1/duplicates", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTooManyRecords(t *testing.T) {
	s := New(report.DefaultOptions(), nil)
	s.MaxRecords = 2
	w, _ := do(t, s.Router(), http.MethodPost, "/v1/profile", people)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestProfile(t *testing.T) {
	h := New(report.DefaultOptions(), nil).Router()
	req := map[string]any{"records": []map[string]any{
		{"id": 1, "email": "a@example.com"},
		{"id": 2, "email": nil},
	}}
	w, body := do(t, h, http.MethodPost, "/v1/profile", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cols := body["profile"].(map[string]any)["columns"].([]any)
	require.Len(t, cols, 2)
	email := cols[0].(map[string]any)
	assert.Equal(t, "email", email["column"])
	assert.Equal(t, 50.0, email["null_pct"])
	id := cols[1].(map[string]any)
	assert.Equal(t, "integer", id["dtype"])
	assert.NotZero(t, body["score"].(map[string]any)["score"])
}

func TestScanSavesHistory(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close()
	h := New(report.DefaultOptions(), st).Router()

	req := map[string]any{"records": people["records"], "fields": people["fields"], "job": "api", "save": true}
	w, body := do(t, h, http.MethodPost, "/v1/scan", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Contains(t, body["markdown"], "[DATA QUALITY SCORE]")

	w, list := do(t, h, http.MethodGet, "/v1/scans?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list["scans"], 1)

	w, got := do(t, h, http.MethodGet, "/v1/scans/"+id[:8], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "api", got["job"])
	assert.Equal(t, float64(2), got["duplicates"])

	w, _ = do(t, h, http.MethodGet, "/v1/scans/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanWithoutStore(t *testing.T) {
	h := New(report.DefaultOptions(), nil).Router()
	w, _ := do(t, h, http.MethodPost, "/v1/scan", map[string]any{"records": people["records"], "save": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, h, http.MethodGet, "/v1/scans", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
