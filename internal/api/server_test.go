package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-quiz/internal/models"
	"exam-quiz/internal/services"
	"exam-quiz/internal/session"
)

type fakeExtractor struct {
	questions []models.Question
	err       error
	entered   chan struct{}
	release   chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) ([]models.Question, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	return f.questions, f.err
}

type fakeIngestor struct {
	questions []models.Question
	err       error
}

func (f *fakeIngestor) ProcessExamPDF(ctx context.Context, name string, src io.Reader) ([]models.Question, *models.Document, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.questions, &models.Document{ID: 1, OriginalName: name, PageCount: 3}, nil
}

func intPtr(i int) *int { return &i }

func sampleQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			Number:             i + 1,
			Section:            "Reasoning",
			Text:               "question",
			Options:            []string{"a", "b", "c", "d"},
			CorrectOptionIndex: intPtr(0),
			HasMarkedAnswer:    true,
		}
	}
	return qs
}

func newTestServer(extractor QuestionExtractor, ingestor ExamIngestor) (*Server, http.Handler) {
	s := NewServer(extractor, ingestor, session.New(nil, nil), nil)
	return s, s.Handler()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(&fakeExtractor{}, &fakeIngestor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestExtract_Success(t *testing.T) {
	_, h := newTestServer(&fakeExtractor{questions: sampleQuestions(2)}, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodPost, "/api/extract",
		strings.NewReader(`{"pdfText":"Q1. Something"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["questions"], 2)
}

func TestExtract_MissingText(t *testing.T) {
	_, h := newTestServer(&fakeExtractor{}, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"pdfText":"  "}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestExtract_MethodNotAllowed(t *testing.T) {
	_, h := newTestServer(&fakeExtractor{}, &fakeIngestor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/extract", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExtract_Preflight(t *testing.T) {
	_, h := newTestServer(&fakeExtractor{}, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodOptions, "/api/extract", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}

func TestExtract_ParseFailureIsUnprocessable(t *testing.T) {
	extractor := &fakeExtractor{
		err: &services.ExtractionError{Kind: services.ErrKindParse, Message: "no JSON found"},
	}
	_, h := newTestServer(extractor, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"pdfText":"text"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "no JSON found", body["error"])
}

func TestExtract_UpstreamFailureIsBadGateway(t *testing.T) {
	extractor := &fakeExtractor{
		err: &services.ExtractionError{Kind: services.ErrKindUpstream, Message: "llm api error", Details: "rate limited"},
	}
	_, h := newTestServer(extractor, &fakeIngestor{})

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"pdfText":"text"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "rate limited", decodeBody(t, rec)["details"])
}

func TestExtract_SecondConcurrentAttemptConflicts(t *testing.T) {
	extractor := &fakeExtractor{
		questions: sampleQuestions(1),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	_, h := newTestServer(extractor, &fakeIngestor{})

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"pdfText":"text"}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		firstDone <- rec
	}()

	<-extractor.entered

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"pdfText":"text"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(extractor.release)
	first := <-firstDone
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestUploadDocument_LoadsSession(t *testing.T) {
	s, h := newTestServer(&fakeExtractor{}, &fakeIngestor{questions: sampleQuestions(3)})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "paper.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, float64(3), body["pages"])

	v := s.session.View()
	assert.Equal(t, session.StateQuiz, v.State)
	assert.Equal(t, 3, v.Total)
}

func TestSessionFlow(t *testing.T) {
	s, h := newTestServer(&fakeExtractor{}, &fakeIngestor{})
	require.NoError(t, s.session.LoadQuestions(sampleQuestions(2)))

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// Submitting with no selection is a caller error.
	rec := post("/api/session/submit", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("/api/session/select", `{"optionIndex":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post("/api/session/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["revealed"])

	rec = post("/api/session/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["position"])

	rec = post("/api/session/filter", `{"filter":"wrong"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["total"])

	rec = post("/api/session/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(session.StateQuiz), decodeBody(t, rec)["state"])

	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/session/review", nil))
	require.Equal(t, http.StatusOK, getRec.Code)
}
