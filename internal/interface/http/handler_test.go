package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obara/supportdesk/internal/domain/chat"
	"github.com/obara/supportdesk/internal/infra/config"
	apperrors "github.com/obara/supportdesk/pkg/errors"
)

type stubChatService struct {
	askResp    chat.Response
	askErr     error
	summary    chat.SummaryResponse
	summaryErr error
	faqs       []chat.CommonFaq
	faqsErr    error
	recompute  chat.RecomputeResult
	recompErr  error
}

func (s *stubChatService) Ask(context.Context, chat.Request) (chat.Response, error) {
	return s.askResp, s.askErr
}

func (s *stubChatService) Summarize(context.Context, string) (chat.SummaryResponse, error) {
	return s.summary, s.summaryErr
}

func (s *stubChatService) CommonFaqs(context.Context, int) ([]chat.CommonFaq, error) {
	return s.faqs, s.faqsErr
}

func (s *stubChatService) Recompute(context.Context) (chat.RecomputeResult, error) {
	return s.recompute, s.recompErr
}

func newTestServer(svc chat.Service) http.Handler {
	cfg := &config.Config{}
	cfg.HTTP.Address = ":0"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(cfg, NewHandler(svc, logger)).Handler
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAskEndpoint(t *testing.T) {
	svc := &stubChatService{askResp: chat.Response{
		SessionID: "s1",
		Question:  "How do I reset my password?",
		Answer:    "Use the reset link.",
		Source:    chat.SourceLLM,
		Score:     0.93,
	}}
	handler := newTestServer(svc)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/chat", chat.Request{
		SessionID: "s1",
		Question:  "How do I reset my password?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Use the reset link.", resp.Answer)
	require.Equal(t, chat.SourceLLM, resp.Source)
}

func TestAskEndpointRejectsMalformedBody(t *testing.T) {
	handler := newTestServer(&stubChatService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskEndpointStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		status int
	}{
		{"invalid input", apperrors.CodeInvalidInput, http.StatusBadRequest},
		{"llm failure", apperrors.CodeLLM, http.StatusBadGateway},
		{"embedding failure", apperrors.CodeEmbedding, http.StatusBadGateway},
		{"source failure", apperrors.CodeDataSource, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubChatService{askErr: apperrors.Wrap(tc.code, tc.name, nil)}
			rec := doJSON(t, newTestServer(svc), http.MethodPost, "/api/v1/chat", chat.Request{Question: "valid question"})
			require.Equal(t, tc.status, rec.Code)

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotEmpty(t, body.Error.Code)
		})
	}
}

func TestSummaryEndpoint(t *testing.T) {
	svc := &stubChatService{summary: chat.SummaryResponse{
		SessionID: "s1",
		Summary:   "The user asked about password resets.",
		Turns:     2,
	}}
	rec := doJSON(t, newTestServer(svc), http.MethodPost, "/api/v1/chat/summary", map[string]string{"sessionId": "s1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chat.SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Turns)
}

func TestCommonFaqsEndpoint(t *testing.T) {
	svc := &stubChatService{faqs: []chat.CommonFaq{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	}}
	handler := newTestServer(svc)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/faqs/common?n=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Faqs []chat.CommonFaq `json:"faqs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Faqs, 2)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/faqs/common?n=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecomputeEndpoint(t *testing.T) {
	svc := &stubChatService{recompute: chat.RecomputeResult{Entries: 12, Dimension: 1536}}
	rec := doJSON(t, newTestServer(svc), http.MethodPost, "/api/v1/faqs/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result chat.RecomputeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 12, result.Entries)
	require.Equal(t, 1536, result.Dimension)
}

func TestHealthzEndpoint(t *testing.T) {
	rec := doJSON(t, newTestServer(&stubChatService{}), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}
