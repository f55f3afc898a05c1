package objections

import (
	"testing"

	"callos/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func skepticism() Objection {
	return Objection{
		ID:   "obj-1",
		Type: TypeSkepticism,
		DiagnosticQuestions: datatypes.NewJSONType([]Question{
			{ID: "source", Text: "What makes you doubt it?"},
			{ID: "proof", Text: "What proof would convince you?"},
		}),
		AllowedOutcomes: datatypes.NewJSONType([]Outcome{OutcomeResolved, OutcomeDisqualified}),
	}
}

func TestValidateOutcome_SkepticismRejectsDeferred(t *testing.T) {
	o := skepticism()
	err := ValidateOutcome(o, OutcomeDeferred)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	assert.NoError(t, ValidateOutcome(o, OutcomeResolved))
	assert.True(t, apperr.HasCode(ValidateOutcome(o, "Maybe"), apperr.CodeValidation))
}

func TestNextQuestion_StepsInOrder(t *testing.T) {
	o := skepticism()

	step := NextQuestion(o, nil)
	require.NotNil(t, step.Question)
	assert.Equal(t, "source", step.Question.ID)
	assert.Equal(t, 0, step.Index)
	assert.Equal(t, 2, step.Total)

	step = NextQuestion(o, Answers{"source": "bad reviews"})
	require.NotNil(t, step.Question)
	assert.Equal(t, "proof", step.Question.ID)

	step = NextQuestion(o, Answers{"source": "x", "proof": "y"})
	assert.True(t, step.Done)
	assert.Nil(t, step.Question)
}

func TestValidateAnswers_RejectsUnknownIDs(t *testing.T) {
	o := skepticism()
	assert.NoError(t, ValidateAnswers(o, Answers{"proof": "case study"}))
	assert.True(t, apperr.HasCode(ValidateAnswers(o, Answers{"budget": "10k"}), apperr.CodeValidation))
}

func TestDefaultAllowedOutcomes(t *testing.T) {
	assert.NotContains(t, DefaultAllowedOutcomes(TypeSkepticism), OutcomeDeferred)
	assert.Len(t, DefaultAllowedOutcomes(TypePrice), 3)
	for _, typ := range Types {
		assert.True(t, typ.Valid())
	}
	assert.False(t, Type("Budget").Valid())
}
