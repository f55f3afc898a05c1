package outcomes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callos/internal/apperr"
	"callos/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Input struct {
	OutcomeType            Type
	DisqualificationReason string
	Notes                  string
	FollowUpAt             *time.Time
}

// Validate requires a disqualification reason exactly when the outcome is Disqualified.
func (in Input) Validate() error {
	if !in.OutcomeType.Valid() {
		return apperr.Validation("outcomeType must be one of Coaching_Client, Follow_up_Scheduled, Implementation_Only, Disqualified")
	}
	reason := strings.TrimSpace(in.DisqualificationReason)
	if in.OutcomeType == TypeDisqualified && reason == "" {
		return apperr.Validation("disqualificationReason is required for Disqualified outcomes")
	}
	if in.OutcomeType != TypeDisqualified && reason != "" {
		return apperr.Validation("disqualificationReason is only allowed for Disqualified outcomes")
	}
	if in.FollowUpAt != nil && in.OutcomeType != TypeFollowUpScheduled {
		return apperr.Validation("followUpAt is only allowed for Follow_up_Scheduled outcomes")
	}
	return nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Create inserts the outcome for callID. Run it inside the transaction that completes the call.
func (s *Service) Create(ctx context.Context, organizationID, callID, recordedBy string, in Input, flags QualificationFlags, now time.Time) (CallOutcome, error) {
	if err := in.Validate(); err != nil {
		return CallOutcome{}, err
	}
	exists, err := s.exists(ctx, callID)
	if err != nil {
		return CallOutcome{}, err
	}
	if exists {
		return CallOutcome{}, apperr.Conflict("an outcome is already recorded for this call")
	}
	if flags.FailedGates == nil {
		flags.FailedGates = []string{}
	}
	o := CallOutcome{
		ID:                 uuid.NewString(),
		CallSessionID:      callID,
		OrganizationID:     organizationID,
		OutcomeType:        in.OutcomeType,
		QualificationFlags: datatypes.NewJSONType(flags),
		Notes:              in.Notes,
		FollowUpAt:         in.FollowUpAt,
		RecordedBy:         recordedBy,
		CreatedAt:          now.UTC(),
	}
	if reason := strings.TrimSpace(in.DisqualificationReason); reason != "" {
		o.DisqualificationReason = &reason
	}
	if err := utils.Conn(ctx, s.db).Create(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return CallOutcome{}, apperr.Conflict("an outcome is already recorded for this call")
		}
		return CallOutcome{}, fmt.Errorf("outcomes: create: %w", err)
	}
	return o, nil
}

func (s *Service) exists(ctx context.Context, callID string) (bool, error) {
	var n int64
	if err := utils.Conn(ctx, s.db).Model(&CallOutcome{}).Where("call_session_id = ?", callID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("outcomes: lookup: %w", err)
	}
	return n > 0, nil
}

// GetForCall returns the outcome of a call in organizationID.
func (s *Service) GetForCall(ctx context.Context, organizationID, callID string) (CallOutcome, error) {
	var o CallOutcome
	err := utils.Conn(ctx, s.db).
		Where("organization_id = ? AND call_session_id = ?", organizationID, callID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CallOutcome{}, apperr.NotFound("call outcome")
	}
	if err != nil {
		return CallOutcome{}, fmt.Errorf("outcomes: get: %w", err)
	}
	return o, nil
}
