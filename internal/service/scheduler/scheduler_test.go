package scheduler

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/store"
)

// fakeMasteryStore serves canned review and new-word pools.
type fakeMasteryStore struct {
	reviews []*domain.Word
	fresh   []*domain.Word

	gotThreshold int
	gotNewLimit  int
}

var _ store.MasteryStore = (*fakeMasteryStore)(nil)

func (f *fakeMasteryStore) GetScore(ctx context.Context, userID, wordID uuid.UUID) (*domain.MasteryRecord, error) {
	return nil, store.ErrMasteryNotFound
}

func (f *fakeMasteryStore) RecordScore(ctx context.Context, userID, wordID uuid.UUID, score int) error {
	return nil
}

func (f *fakeMasteryStore) WordsDueForReview(ctx context.Context, userID uuid.UUID, threshold, limit int) ([]*domain.Word, error) {
	f.gotThreshold = threshold
	if len(f.reviews) > limit {
		return f.reviews[:limit], nil
	}
	return f.reviews, nil
}

func (f *fakeMasteryStore) WordsNeverSeen(ctx context.Context, userID uuid.UUID, language string, limit int) ([]*domain.Word, error) {
	f.gotNewLimit = limit
	if len(f.fresh) > limit {
		return f.fresh[:limit], nil
	}
	return f.fresh, nil
}

func (f *fakeMasteryStore) WithTx(tx *sql.Tx) store.MasteryStore { return f }

func makeWords(t *testing.T, n int, startRank int) []*domain.Word {
	t.Helper()
	words := make([]*domain.Word, n)
	for i := range words {
		var err error
		words[i], err = domain.NewWord("wort", "NOUN", startRank+i, "de")
		require.NoError(t, err)
	}
	return words
}

func TestPlanFreshUser(t *testing.T) {
	t.Parallel()

	// A user with no history gets only new words, most common first,
	// capped by MaxNewWords.
	fresh := makeWords(t, 5, 1)
	fake := &fakeMasteryStore{fresh: fresh}
	s := New(fake, DefaultParams(), nil)

	plan, err := s.Plan(context.Background(), uuid.New(), "de")
	require.NoError(t, err)
	require.Len(t, plan, 3)

	for i, slot := range plan {
		assert.Equal(t, i+1, slot.SequenceNumber)
		assert.False(t, slot.IsReview)
	}
	assert.Equal(t, 1, plan[0].Word.FrequencyRank, "most common unseen word should come first")
	assert.Equal(t, 7, fake.gotThreshold)
}

func TestPlanInterleavesReviewsBeforeNew(t *testing.T) {
	t.Parallel()

	reviews := makeWords(t, 4, 100)
	fresh := makeWords(t, 2, 1)
	fake := &fakeMasteryStore{reviews: reviews, fresh: fresh}
	s := New(fake, DefaultParams(), nil)

	plan, err := s.Plan(context.Background(), uuid.New(), "de")
	require.NoError(t, err)
	require.Len(t, plan, 6)

	// Two reviews precede each new word
	wantReview := []bool{true, true, false, true, true, false}
	for i, slot := range plan {
		assert.Equal(t, i+1, slot.SequenceNumber)
		assert.Equal(t, wantReview[i], slot.IsReview, "slot %d", i+1)
	}

	// A weak seen word must be reviewed before any new word appears
	assert.Equal(t, reviews[0].ID, plan[0].Word.ID)
}

func TestPlanCapsAtWordsPerLesson(t *testing.T) {
	t.Parallel()

	fake := &fakeMasteryStore{reviews: makeWords(t, 20, 100), fresh: makeWords(t, 5, 1)}
	s := New(fake, DefaultParams(), nil)

	plan, err := s.Plan(context.Background(), uuid.New(), "de")
	require.NoError(t, err)
	assert.Len(t, plan, 10)
}

func TestPlanEmptyPools(t *testing.T) {
	t.Parallel()

	fake := &fakeMasteryStore{}
	s := New(fake, DefaultParams(), nil)

	plan, err := s.Plan(context.Background(), uuid.New(), "de")
	require.NoError(t, err)
	assert.Empty(t, plan, "nothing due and nothing unseen should yield an empty plan")
}

func TestPlanOnlyReviews(t *testing.T) {
	t.Parallel()

	fake := &fakeMasteryStore{reviews: makeWords(t, 10, 100)}
	s := New(fake, DefaultParams(), nil)

	plan, err := s.Plan(context.Background(), uuid.New(), "de")
	require.NoError(t, err)
	require.Len(t, plan, 10)
	for _, slot := range plan {
		assert.True(t, slot.IsReview)
	}
	assert.Equal(t, 0, fake.gotNewLimit)
}

func TestPlanZeroReviewsPerNew(t *testing.T) {
	t.Parallel()

	params := DefaultParams()
	params.ReviewsPerNew = 0
	fake := &fakeMasteryStore{reviews: makeWords(t, 3, 100), fresh: makeWords(t, 2, 1)}
	s := New(fake, params, nil)

	plan, err := s.Plan(context.Background(), uuid.New(), "de")
	require.NoError(t, err)
	assert.Len(t, plan, 5, "all words should still be planned without interleaved reviews")
}
