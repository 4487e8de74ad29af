package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpris/backend/internal/ai"
	"tpris/backend/internal/analysis"
)

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Enabled() bool { return true }
func (s stubGenerator) Name() string  { return "stub" }
func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

const fencedReply = "Sure! ```json\n{\"decision\":{\"action\":\"FLAG\",\"rationale\":\"abusive\"},\"rewrite\":{\"text\":[\"Please\",\"be respectful.\"]}}\n```"

func newTestServer(t *testing.T, gen ai.Generator, withDB bool) (*Server, *gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg := Config{
		CSVPath:   filepath.Join(dir, "submitted_feedback.csv"),
		Generator: gen,
		SilentDB:  true,
	}
	if withDB {
		cfg.DBPath = filepath.Join(dir, "tpris.db")
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return server, router, cfg.CSVPath
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, router, _ := newTestServer(t, nil, false)
	rec := doJSON(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","system":"TP-RIS-Offline"}`, rec.Body.String())
}

func TestAnalyzeFeedback(t *testing.T) {
	_, router, _ := newTestServer(t, stubGenerator{text: fencedReply}, true)

	rec := doJSON(router, http.MethodPost, "/analyze-feedback", `{"review_text":"you are all idiots","rating":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result analysis.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, analysis.ActionFlag, result.Decision.Action)
	require.NotNil(t, result.Rewrite.Text)
	assert.Equal(t, "Please\nbe respectful.", *result.Rewrite.Text)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw["ofnr_d"], "observation")
	assert.Nil(t, raw["ofnr_d"]["observation"])
	assert.NotNil(t, raw["trust_assessment"]["flags"])

	stats := doJSON(router, http.MethodGet, "/analyses/stats", "")
	require.Equal(t, http.StatusOK, stats.Code)
	assert.JSONEq(t, `{"succeeded":1,"fallbacks":{}}`, stats.Body.String())
}

func TestAnalyzeFeedbackRejectsEmptyText(t *testing.T) {
	_, router, _ := newTestServer(t, stubGenerator{text: fencedReply}, false)

	rec := doJSON(router, http.MethodPost, "/analyze-feedback", `{"review_text":"   \n "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(router, http.MethodPost, "/analyze-feedback", `not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAnalyzeFeedbackFallbacksAreOK(t *testing.T) {
	tests := []struct {
		name string
		gen  ai.Generator
		flag string
	}{
		{"runtime down", stubGenerator{err: &ai.TransportError{Op: "chat", Err: errors.New("connection refused")}}, "connection_error"},
		{"prose reply", stubGenerator{text: "not json at all"}, "extraction_error"},
		{"bad action", stubGenerator{text: `{"decision":{"action":"BAN","rationale":"x"}}`}, "schema_validation_error"},
		{"no runtime", nil, "system_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, router, _ := newTestServer(t, tc.gen, true)
			rec := doJSON(router, http.MethodPost, "/analyze-feedback", `{"review_text":"The course was fine."}`)
			require.Equal(t, http.StatusOK, rec.Code)

			var result analysis.AnalysisResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, analysis.ActionNoOp, result.Decision.Action)
			assert.Equal(t, []string{tc.flag}, result.TrustAssessment.Flags)

			stats := doJSON(router, http.MethodGet, "/analyses/stats", "")
			require.Equal(t, http.StatusOK, stats.Code)
			var resp AnalysisStatsResponse
			require.NoError(t, json.Unmarshal(stats.Body.Bytes(), &resp))
			assert.Equal(t, map[string]int64{tc.flag: 1}, resp.Fallbacks)
		})
	}
}

func TestSubmitFeedback(t *testing.T) {
	_, router, csvPath := newTestServer(t, nil, true)

	rec := doJSON(router, http.MethodPost, "/submit-feedback", `{"feedback_text":"Thanks for the clear slides.","observation":"slides were clear","trust_score":0.9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "saved", resp.Status)
	assert.NotEmpty(t, resp.ID)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Thanks for the clear slides.", rows[1][1])
	assert.Equal(t, "slides were clear", rows[1][2])
	assert.Equal(t, "0.9", rows[1][6])

	list := doJSON(router, http.MethodGet, "/submissions?page=0&pageSize=10", "")
	require.Equal(t, http.StatusOK, list.Code)
	var page SubmissionsResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, resp.ID, page.Items[0].ID)
}

func TestListSubmissionsClampsPaging(t *testing.T) {
	_, router, _ := newTestServer(t, nil, true)
	for i := 0; i < maxPageSize+5; i++ {
		rec := doJSON(router, http.MethodPost, "/submit-feedback", fmt.Sprintf(`{"feedback_text":"note %d"}`, i))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	list := doJSON(router, http.MethodGet, "/submissions?pageSize=100000", "")
	require.Equal(t, http.StatusOK, list.Code)
	var page SubmissionsResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	assert.EqualValues(t, maxPageSize+5, page.Total)
	assert.Len(t, page.Items, maxPageSize)

	far := doJSON(router, http.MethodGet, "/submissions?page=9223372036854775807&pageSize=100", "")
	require.Equal(t, http.StatusOK, far.Code)
	page = SubmissionsResponse{}
	require.NoError(t, json.Unmarshal(far.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	_, router, _ := newTestServer(t, nil, false)
	rec := doJSON(router, http.MethodPost, "/submit-feedback", `{"feedback_text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := doJSON(router, http.MethodGet, "/submissions", "")
	assert.Equal(t, http.StatusServiceUnavailable, list.Code)
}

func TestAnalyzeStream(t *testing.T) {
	_, router, _ := newTestServer(t, stubGenerator{text: fencedReply}, false)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/analyze-feedback/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"review_text": "you are all idiots"}))
	var event StreamEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "analysis", event.Type)
	assert.NotEmpty(t, event.RequestID)
	require.NotNil(t, event.Result)
	assert.Equal(t, analysis.ActionFlag, event.Result.Decision.Action)

	require.NoError(t, conn.WriteJSON(map[string]any{"review_text": " "}))
	event = StreamEvent{}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "error", event.Type)
	assert.Nil(t, event.Result)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	event = StreamEvent{}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "error", event.Type)
	assert.True(t, strings.HasPrefix(event.Message, "invalid request"))
}
