package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"go.uber.org/zap"

	"exam-quiz/internal/models"
	"exam-quiz/internal/store"
)

// State names the screens of the quiz flow.
type State string

const (
	StateUpload  State = "upload"
	StateQuiz    State = "quiz"
	StateResults State = "results"
)

// Filter values. Anything other than these two is treated as a
// case-insensitive section substring match.
const (
	FilterAll   = "all"
	FilterWrong = "wrong"
)

var (
	// ErrNoQuestions is surfaced when a load carries no questions; the
	// session stays in the upload state.
	ErrNoQuestions = errors.New("no questions to load")
	// ErrNoSelection is surfaced when submit is called before an option
	// was selected.
	ErrNoSelection = errors.New("no option selected")
)

// Controller owns one quiz session: the ordered question set, position,
// scoring and wrong-question bookkeeping. HTTP handlers may call it
// concurrently, so every operation holds the session lock; within one
// session operations serialize exactly as the cooperative UI loop did.
//
// Every mutating operation persists the full snapshot synchronously before
// returning. A failed save is logged and otherwise ignored: the in-memory
// state change stands.
type Controller struct {
	mu    sync.Mutex
	store store.SnapshotStore
	log   *zap.Logger

	state     State
	questions []models.Question
	filter    string
	view      []int // indices into questions under the active filter
	position  int
	selected  int // -1 when nothing is selected
	revealed  bool
	score     models.Score
	wrong     []models.Question
	wrongSet  map[int]bool // keyed by question number
	reviews   *reviewQueue
}

// New creates a session controller, hydrating from a prior snapshot when the
// store holds one.
func New(st store.SnapshotStore, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		store:    st,
		log:      log,
		state:    StateUpload,
		filter:   FilterAll,
		selected: -1,
		wrongSet: make(map[int]bool),
		reviews:  newReviewQueue(),
	}

	if st != nil {
		snap, ok, err := st.Load()
		switch {
		case err != nil:
			log.Warn("load session snapshot", zap.Error(err))
		case ok:
			c.hydrate(snap)
		}
	}
	return c
}

func (c *Controller) hydrate(snap *models.Snapshot) {
	c.questions = append([]models.Question(nil), snap.Questions...)
	c.score = snap.Score
	c.wrong = append([]models.Question(nil), snap.WrongQuestions...)
	for _, q := range c.wrong {
		c.wrongSet[q.Number] = true
	}
	if len(c.questions) > 0 {
		c.state = StateQuiz
	}
	c.rebuildView()
}

// LoadQuestions replaces the question set and starts a fresh quiz. An empty
// set keeps the session on the upload screen and returns ErrNoQuestions.
func (c *Controller) LoadQuestions(qs []models.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(qs) == 0 {
		c.state = StateUpload
		return ErrNoQuestions
	}

	c.questions = append([]models.Question(nil), qs...)
	c.state = StateQuiz
	c.filter = FilterAll
	c.position = 0
	c.selected = -1
	c.revealed = false
	c.score = models.Score{}
	c.wrong = nil
	c.wrongSet = make(map[int]bool)
	c.reviews.clear()
	c.rebuildView()
	c.persist()
	return nil
}

// SelectOption records the user's choice for the current question. It is a
// no-op outside the quiz state, after the answer was submitted, or for an
// index outside the question's options.
func (c *Controller) SelectOption(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateQuiz || c.revealed {
		return
	}
	q := c.current()
	if q == nil || idx < 0 || idx >= len(q.Options) {
		return
	}
	c.selected = idx
	c.persist()
}

// Submit grades the current selection. Exactly one of the correct/incorrect
// counters moves; an incorrect answer puts the question on the wrong list
// (once per question number), a correct answer takes it off again and both
// feed the re-practice scheduler. The correct answer is revealed and the
// options lock until Advance.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateQuiz || c.revealed {
		return nil
	}
	q := c.current()
	if q == nil {
		return nil
	}
	if c.selected < 0 {
		return ErrNoSelection
	}

	now := time.Now().UTC()
	if q.IsCorrect(c.selected) {
		c.score.Correct++
		if c.wrongSet[q.Number] {
			c.removeWrong(q.Number)
			c.reviews.record(q.Number, fsrs.Good, now)
		}
	} else {
		c.score.Incorrect++
		if !c.wrongSet[q.Number] {
			c.wrongSet[q.Number] = true
			c.wrong = append(c.wrong, *q)
		}
		c.reviews.record(q.Number, fsrs.Again, now)
	}
	c.score.Attempted = c.score.Correct + c.score.Incorrect
	c.revealed = true
	c.persist()
	return nil
}

// Advance moves to the next question under the active filter, or to the
// results screen when none remain. Selection and reveal state reset.
func (c *Controller) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateQuiz {
		return
	}
	if c.position+1 < len(c.view) {
		c.position++
		c.selected = -1
		c.revealed = false
	} else {
		c.state = StateResults
	}
	c.persist()
}

// SetFilter restricts the quiz to a subset of questions: all, wrong, or a
// section substring. The filtered view is fixed at this point; answering a
// wrong question correctly afterwards does not shrink the view mid-pass.
// Position resets to the start.
func (c *Controller) SetFilter(f string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUpload {
		return
	}
	f = strings.TrimSpace(f)
	if f == "" {
		f = FilterAll
	}
	c.filter = f
	c.state = StateQuiz
	c.position = 0
	c.selected = -1
	c.revealed = false
	c.rebuildView()
	c.persist()
}

// Reset zeroes the score, the wrong list and the re-practice queue while
// keeping the loaded questions, and returns to the first question.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.questions) == 0 {
		return
	}
	c.state = StateQuiz
	c.filter = FilterAll
	c.position = 0
	c.selected = -1
	c.revealed = false
	c.score = models.Score{}
	c.wrong = nil
	c.wrongSet = make(map[int]bool)
	c.reviews.clear()
	c.rebuildView()
	c.persist()
}

// DueReview lists wrong-question numbers due for re-practice, soonest first.
func (c *Controller) DueReview(now time.Time) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reviews.due(now, c.wrongSet)
}

// View is a read-only projection of the session for rendering.
type View struct {
	State      State            `json:"state"`
	Filter     string           `json:"filter"`
	Position   int              `json:"position"`
	Total      int              `json:"total"`
	Question   *models.Question `json:"question,omitempty"`
	Selected   *int             `json:"selected,omitempty"`
	Revealed   bool             `json:"revealed"`
	Score      models.Score     `json:"score"`
	WrongCount int              `json:"wrong_count"`
}

// Snapshot returns the persistable session state.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// View returns the current renderable state of the session.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:      c.state,
		Filter:     c.filter,
		Position:   c.position,
		Total:      len(c.view),
		Revealed:   c.revealed,
		Score:      c.score,
		WrongCount: len(c.wrong),
	}
	if q := c.current(); q != nil {
		qq := *q
		v.Question = &qq
	}
	if c.selected >= 0 {
		sel := c.selected
		v.Selected = &sel
	}
	return v
}

func (c *Controller) current() *models.Question {
	if c.position < 0 || c.position >= len(c.view) {
		return nil
	}
	return &c.questions[c.view[c.position]]
}

func (c *Controller) rebuildView() {
	c.view = c.view[:0]
	for i := range c.questions {
		if c.matchesFilter(&c.questions[i]) {
			c.view = append(c.view, i)
		}
	}
	if c.position >= len(c.view) {
		c.position = 0
	}
}

func (c *Controller) matchesFilter(q *models.Question) bool {
	switch c.filter {
	case FilterAll, "":
		return true
	case FilterWrong:
		return c.wrongSet[q.Number]
	default:
		return strings.Contains(strings.ToLower(q.SectionLabel()), strings.ToLower(c.filter))
	}
}

func (c *Controller) removeWrong(number int) {
	delete(c.wrongSet, number)
	kept := c.wrong[:0]
	for _, q := range c.wrong {
		if q.Number != number {
			kept = append(kept, q)
		}
	}
	c.wrong = kept
}

func (c *Controller) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Questions:      append([]models.Question(nil), c.questions...),
		Score:          c.score,
		WrongQuestions: append([]models.Question(nil), c.wrong...),
	}
}

func (c *Controller) persist() {
	if c.store == nil {
		return
	}
	snap := c.snapshotLocked()
	if err := c.store.Save(&snap); err != nil {
		c.log.Warn("persist session snapshot", zap.Error(err))
	}
}
