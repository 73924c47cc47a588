// Package scheduler plans lessons: it decides which words a user practices
// next and in what order, mixing reviews of weak words with new vocabulary.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/store"
)

// Params tunes how lessons are planned.
type Params struct {
	// ScoreThreshold is the mastery score below which a seen word is due
	// for review.
	ScoreThreshold int
	// WordsPerLesson caps the number of slots in one lesson.
	WordsPerLesson int
	// MaxNewWords caps how many never-seen words one lesson introduces.
	MaxNewWords int
	// ReviewsPerNew is how many review slots are placed before each new
	// word when interleaving.
	ReviewsPerNew int
}

// DefaultParams are the tuning values used when none are configured.
func DefaultParams() Params {
	return Params{
		ScoreThreshold: 7,
		WordsPerLesson: 10,
		MaxNewWords:    3,
		ReviewsPerNew:  2,
	}
}

// PlannedWord is one scheduled position of a lesson plan.
type PlannedWord struct {
	SequenceNumber int
	Word           *domain.Word
	IsReview       bool
}

// Scheduler builds lesson plans from a user's mastery state.
type Scheduler struct {
	masteryStore store.MasteryStore
	params       Params
	logger       *slog.Logger
}

// New creates a Scheduler. If logger is nil, a default logger will be used.
func New(masteryStore store.MasteryStore, params Params, log *slog.Logger) *Scheduler {
	if masteryStore == nil {
		panic("masteryStore cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Scheduler{
		masteryStore: masteryStore,
		params:       params,
		logger:       log.With(slog.String("component", "scheduler")),
	}
}

// Plan selects and orders the words for a user's next lesson.
//
// Review words (seen, score below the threshold) come least recently
// practiced first; new words come most common first. The two pools are
// interleaved so roughly ReviewsPerNew reviews precede each new word, with
// whichever pool remains draining afterwards. An empty plan is a valid
// result: the user has nothing due and no unseen vocabulary.
func (s *Scheduler) Plan(ctx context.Context, userID uuid.UUID, language string) ([]PlannedWord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	reviews, err := s.masteryStore.WordsDueForReview(ctx, userID, s.params.ScoreThreshold, s.params.WordsPerLesson)
	if err != nil {
		return nil, fmt.Errorf("selecting review words: %w", err)
	}

	newLimit := s.params.MaxNewWords
	if remaining := s.params.WordsPerLesson - len(reviews); remaining < newLimit {
		newLimit = remaining
	}

	var fresh []*domain.Word
	if newLimit > 0 {
		fresh, err = s.masteryStore.WordsNeverSeen(ctx, userID, language, newLimit)
		if err != nil {
			return nil, fmt.Errorf("selecting new words: %w", err)
		}
	}

	plan := s.interleave(reviews, fresh)

	log.Info("lesson planned",
		slog.String("user_id", userID.String()),
		slog.Int("review_count", len(reviews)),
		slog.Int("new_count", len(fresh)),
		slog.Int("slot_count", len(plan)))
	return plan, nil
}

// interleave merges the review and new pools into one ordered plan,
// numbering slots from 1. ReviewsPerNew reviews are placed before each new
// word; once either pool empties the other drains in order.
func (s *Scheduler) interleave(reviews, fresh []*domain.Word) []PlannedWord {
	plan := make([]PlannedWord, 0, len(reviews)+len(fresh))
	ri, ni := 0, 0

	for len(plan) < s.params.WordsPerLesson && (ri < len(reviews) || ni < len(fresh)) {
		before := len(plan)
		sinceNew := 0
		for ri < len(reviews) && sinceNew < s.params.ReviewsPerNew && len(plan) < s.params.WordsPerLesson {
			plan = append(plan, PlannedWord{
				SequenceNumber: len(plan) + 1,
				Word:           reviews[ri],
				IsReview:       true,
			})
			ri++
			sinceNew++
		}

		if ni < len(fresh) && len(plan) < s.params.WordsPerLesson {
			plan = append(plan, PlannedWord{
				SequenceNumber: len(plan) + 1,
				Word:           fresh[ni],
				IsReview:       false,
			})
			ni++
		}

		// A zero ReviewsPerNew with an exhausted new pool would otherwise
		// loop without progress; drain the remaining reviews instead.
		if len(plan) == before {
			for ri < len(reviews) && len(plan) < s.params.WordsPerLesson {
				plan = append(plan, PlannedWord{
					SequenceNumber: len(plan) + 1,
					Word:           reviews[ri],
					IsReview:       true,
				})
				ri++
			}
			break
		}
	}

	return plan
}
