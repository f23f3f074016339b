package services

import (
	"context"
	"io"

	"go.uber.org/zap"

	"exam-quiz/internal/logger"
	"exam-quiz/internal/models"
)

// questionExtractor lets tests run the pipeline without a live LLM.
type questionExtractor interface {
	Extract(ctx context.Context, text string) ([]models.Question, error)
}

// documentStore persists uploaded papers; satisfied by DocumentService.
type documentStore interface {
	Create(ctx context.Context, original string, src io.Reader) (*models.Document, error)
	UpdatePageCount(ctx context.Context, id int64, pages int) error
}

// pageSource extracts text and renders page images; satisfied by PDFService.
type pageSource interface {
	ExtractText(path string) (string, int, error)
	RenderPageImages(path string) ([]PageImage, error)
}

// IngestionService coordinates PDF storage, text extraction, question
// extraction and diagram linking for a whole uploaded exam paper.
type IngestionService struct {
	documents  documentStore
	pdf        pageSource
	extraction questionExtractor
}

func NewIngestionService(documents documentStore, pdf pageSource, extraction questionExtractor) *IngestionService {
	return &IngestionService{documents: documents, pdf: pdf, extraction: extraction}
}

// ProcessExamPDF runs an uploaded exam paper through the full pipeline and
// returns quiz-eligible questions with diagram images attached where a page
// could be associated. All parsed questions are accepted or none are; there
// is no partial-success path.
func (s *IngestionService) ProcessExamPDF(ctx context.Context, originalName string, src io.Reader) ([]models.Question, *models.Document, error) {
	doc, err := s.documents.Create(ctx, originalName, src)
	if err != nil {
		return nil, nil, newExtractionError(ErrKindTransport, "store upload", err.Error())
	}

	text, pageCount, err := s.pdf.ExtractText(doc.StoredPath)
	if err != nil {
		return nil, doc, newExtractionError(ErrKindTransport, "read pdf text", err.Error())
	}
	doc.PageCount = pageCount
	if err := s.documents.UpdatePageCount(ctx, doc.ID, pageCount); err != nil {
		logger.Get().Warn("update page count", zap.Int64("document", doc.ID), zap.Error(err))
	}

	raw, err := s.extraction.Extract(ctx, text)
	if err != nil {
		return nil, doc, err
	}

	questions := models.SanitizeQuestions(raw)
	if len(questions) == 0 {
		return nil, doc, newExtractionError(ErrKindEmptyResult, "no usable questions extracted", "")
	}

	// Page images only serve the diagram heuristic; rendering failure
	// degrades to a quiz without figures.
	images, err := s.pdf.RenderPageImages(doc.StoredPath)
	if err != nil {
		logger.Get().Warn("render page images", zap.Int64("document", doc.ID), zap.Error(err))
		images = nil
	}
	questions = LinkDiagrams(questions, images)

	return questions, doc, nil
}
