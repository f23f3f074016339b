package services

import "exam-quiz/internal/models"

// LinkDiagrams attaches an estimated source page image to every question
// that references a figure, by evenly dividing the question sequence across
// the available page images. This is best-effort: a question may get a
// neighbouring page's image, and nothing verifies the attribution. With no
// page images the questions pass through untouched; a diagram question
// without an image still renders, just without its figure.
func LinkDiagrams(questions []models.Question, pages []PageImage) []models.Question {
	if len(questions) == 0 || len(pages) == 0 {
		return questions
	}

	out := make([]models.Question, len(questions))
	copy(out, questions)

	// perPage = ceil(len(questions) / len(pages))
	perPage := (len(questions) + len(pages) - 1) / len(pages)

	for i := range out {
		if !out[i].HasDiagram {
			continue
		}
		estimatedPage := i / perPage
		if estimatedPage >= len(pages) {
			estimatedPage = len(pages) - 1
		}
		out[i].DiagramImage = pages[estimatedPage].ImageData
	}
	return out
}
