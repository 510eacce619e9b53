package repositories

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

func TestDirectGroupNameOrderInvariant(t *testing.T) {
	assert.Equal(t, "direct:3:9", DirectGroupName(9, 3))
	assert.Equal(t, "direct:3:9", DirectGroupName(3, 9))
}

// The predicate behind the lost-the-race recovery in GetOrCreateDirectGroup
// (and the other conflict-tolerant inserts): only a Postgres 23505 counts.
func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert direct group: %w", &pq.Error{Code: "23505"})))

	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}), "foreign key violation is not recoverable")
	assert.False(t, isUniqueViolation(fmt.Errorf("duplicate key value violates unique constraint")))
	assert.False(t, isUniqueViolation(nil))
}

func TestValidateContent(t *testing.T) {
	require.NoError(t, ValidateContent("hauling starts at 06:00", models.MessageText))

	err := ValidateContent("   ", models.MessageText)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	err = ValidateContent(strings.Repeat("x", MaxContentBytes+1), models.MessageText)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	// Exactly at the ceiling is fine.
	require.NoError(t, ValidateContent(strings.Repeat("x", MaxContentBytes), models.MessageText))

	// System messages may carry empty content.
	require.NoError(t, ValidateContent("", models.MessageSystem))
}

func TestValidateEmoji(t *testing.T) {
	require.NoError(t, validateEmoji("👍"))
	require.ErrorIs(t, validateEmoji(""), apperrors.ErrValidation)
	require.ErrorIs(t, validateEmoji(strings.Repeat("a", MaxEmojiBytes+1)), apperrors.ErrValidation)
}

func TestAggregateReactions(t *testing.T) {
	rows := []models.Reaction{
		{MessageID: 1, UserID: 9, Emoji: "👍"},
		{MessageID: 1, UserID: 2, Emoji: "👍"},
		{MessageID: 1, UserID: 5, Emoji: "🔥"},
	}

	agg := AggregateReactions(rows)
	require.Len(t, agg, 2)
	assert.Equal(t, []int{2, 9}, agg["👍"], "user ids are sorted")
	assert.Equal(t, []int{5}, agg["🔥"])
}

func TestAggregateReactionsEmpty(t *testing.T) {
	agg := AggregateReactions(nil)
	assert.Empty(t, agg)
}

func TestReverseMessages(t *testing.T) {
	msgs := []models.Message{{ID: 3}, {ID: 2}, {ID: 1}}
	reverseMessages(msgs)
	assert.Equal(t, []models.Message{{ID: 1}, {ID: 2}, {ID: 3}}, msgs)

	var empty []models.Message
	reverseMessages(empty)
	assert.Empty(t, empty)
}
