package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"callos/internal/auth"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// There are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, organizationID string, f Filter) ([]Event, error)
}

// Service records who overrode which rule and why.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) List(ctx context.Context, organizationID string, f Filter) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if organizationID == "" {
		return nil, ErrInvalidEvent
	}
	return s.repo.List(ctx, organizationID, f)
}

// Record appends an event attributed to p. metadata may be nil.
func (s *Service) Record(ctx context.Context, p auth.Principal, typ EventType, callID, milestoneID, message string, metadata map[string]any) error {
	e := Event{
		OrganizationID: p.OrganizationID,
		Type:           typ,
		ActorUserID:    p.UserID,
		ActorRole:      p.Role,
		IPAddress:      p.IPAddress,
		CallID:         callID,
		MilestoneID:    milestoneID,
		Message:        message,
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		e.Metadata = datatypes.JSON(b)
	}
	return s.Append(ctx, e)
}
