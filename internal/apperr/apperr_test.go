package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialViolation_RequiresOverride(t *testing.T) {
	err := SequentialViolation("milestone 1 must be completed first")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeSequentialViolation, err.Code)
	assert.Equal(t, true, err.Details["requiresOverride"])
}

func TestMilestonesUnresolved_ReportsMilestoneIDs(t *testing.T) {
	err := MilestonesUnresolved([]string{"m-2", "m-3"})
	assert.Equal(t, CodeCompletionRequirementsNotMet, err.Code)
	assert.Contains(t, err.Message, "milestones are unresolved")
	assert.Equal(t, []string{"m-2", "m-3"}, err.Details["unresolvedMilestones"])
	assert.NotContains(t, err.Details, "missingItems")
}

func TestAs_FindsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("calls: start: %w", InvalidTransition("completed", "in_progress"))
	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidStateTransition, e.Code)
	assert.True(t, HasCode(wrapped, CodeInvalidStateTransition))
	assert.False(t, HasCode(errors.New("plain"), CodeInvalidStateTransition))
}

func TestWithDetail_DoesNotMutateReceiver(t *testing.T) {
	base := New(http.StatusBadRequest, CodeValidation, "bad")
	_ = base.WithDetail("field", "x")
	assert.Nil(t, base.Details)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(http.StatusInternalServerError, CodeInternal, cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "db down", err.Error())
}
