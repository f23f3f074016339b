package session

import (
	"sort"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// reviewQueue schedules wrong questions for re-practice with FSRS. A missed
// question is rated Again, a later correct answer Good, and the resulting
// due times order the re-practice suggestions. The queue is in-memory only;
// it is rebuilt as the user works through a session and is not part of the
// persisted snapshot.
type reviewQueue struct {
	params fsrs.Parameters
	cards  map[int]fsrs.Card
}

func newReviewQueue() *reviewQueue {
	return &reviewQueue{
		params: fsrs.DefaultParam(),
		cards:  make(map[int]fsrs.Card),
	}
}

func (q *reviewQueue) record(number int, rating fsrs.Rating, now time.Time) {
	card := q.cards[number]
	scheduling := q.params.Repeat(card, now)
	info, ok := scheduling[rating]
	if !ok {
		return
	}
	q.cards[number] = info.Card
}

// due returns the question numbers still on the wrong list whose next
// review is due, soonest first.
func (q *reviewQueue) due(now time.Time, wrongSet map[int]bool) []int {
	type entry struct {
		number int
		due    time.Time
	}
	var entries []entry
	for number, card := range q.cards {
		if !wrongSet[number] {
			continue
		}
		if card.Due.After(now) {
			continue
		}
		entries = append(entries, entry{number: number, due: card.Due})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].due.Equal(entries[j].due) {
			return entries[i].number < entries[j].number
		}
		return entries[i].due.Before(entries[j].due)
	})

	numbers := make([]int, 0, len(entries))
	for _, e := range entries {
		numbers = append(numbers, e.number)
	}
	return numbers
}

func (q *reviewQueue) clear() {
	q.cards = make(map[int]fsrs.Card)
}
