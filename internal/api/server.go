package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"exam-quiz/internal/models"
	"exam-quiz/internal/services"
	"exam-quiz/internal/session"
)

const maxMultipartMemory = 8 << 20 // 8 MB

// QuestionExtractor produces structured questions from raw exam text.
type QuestionExtractor interface {
	Extract(ctx context.Context, text string) ([]models.Question, error)
}

// ExamIngestor runs a whole uploaded PDF through the pipeline.
type ExamIngestor interface {
	ProcessExamPDF(ctx context.Context, originalName string, src io.Reader) ([]models.Question, *models.Document, error)
}

type Server struct {
	extraction QuestionExtractor
	ingestion  ExamIngestor
	session    *session.Controller
	log        *zap.Logger

	// extractMu serializes extraction attempts: a second concurrent
	// extraction is a caller error and is answered with 409.
	extractMu sync.Mutex
}

func NewServer(extraction QuestionExtractor, ingestion ExamIngestor, sess *session.Controller, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		extraction: extraction,
		ingestion:  ingestion,
		session:    sess,
		log:        log,
	}
}

// Handler builds the router: permissive CORS for the browser client,
// preflight answered with 200 and no body, 405 for unexpected verbs.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/extract", s.handleExtract)
	r.Post("/api/documents", s.handleUploadDocument)

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/select", s.handleSelect)
		r.Post("/submit", s.handleSubmit)
		r.Post("/advance", s.handleAdvance)
		r.Post("/filter", s.handleFilter)
		r.Post("/reset", s.handleReset)
		r.Get("/review", s.handleReview)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractRequest struct {
	PDFText string `json:"pdfText"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.extractMu.TryLock() {
		writeError(w, http.StatusConflict, "extraction already in progress", "")
		return
	}
	defer s.extractMu.Unlock()

	var payload extractRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if strings.TrimSpace(payload.PDFText) == "" {
		writeError(w, http.StatusBadRequest, "pdfText is required", "")
		return
	}

	questions, err := s.extraction.Extract(r.Context(), payload.PDFText)
	if err != nil {
		s.writeExtractionFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"questions": questions,
		"count":     len(questions),
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if !s.extractMu.TryLock() {
		writeError(w, http.StatusConflict, "extraction already in progress", "")
		return
	}
	defer s.extractMu.Unlock()

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded", "")
		return
	}
	defer file.Close()

	questions, doc, err := s.ingestion.ProcessExamPDF(r.Context(), header.Filename, file)
	if err != nil {
		s.writeExtractionFailure(w, err)
		return
	}

	if err := s.session.LoadQuestions(questions); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(questions),
		"pages":   doc.PageCount,
		"session": s.session.View(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OptionIndex int `json:"optionIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	s.session.SelectOption(payload.OptionIndex)
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Submit(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.session.Advance()
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filter string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	s.session.SetFilter(payload.Filter)
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"due": s.session.DueReview(time.Now().UTC()),
	})
}

// writeExtractionFailure maps the extraction taxonomy onto HTTP statuses:
// upstream and transport problems are a bad gateway, undecodable or empty
// replies are unprocessable.
func (s *Server) writeExtractionFailure(w http.ResponseWriter, err error) {
	kind, ok := services.KindOf(err)
	if !ok {
		s.log.Error("extraction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "extraction failed", err.Error())
		return
	}

	s.log.Warn("extraction failed", zap.String("kind", string(kind)), zap.Error(err))
	status := http.StatusBadGateway
	switch kind {
	case services.ErrKindParse, services.ErrKindEmptyResult:
		status = http.StatusUnprocessableEntity
	}

	var ee *services.ExtractionError
	if errors.As(err, &ee) {
		writeError(w, status, ee.Message, ee.Details)
		return
	}
	writeError(w, status, err.Error(), "")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]any{
		"success": false,
		"error":   message,
	}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
