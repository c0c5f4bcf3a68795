package service

import (
	"context"
	"fmt"
	"time"

	"github.com/coldchain/coldchain-monitor/internal/audit"
	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

type IncidentService struct {
	store repository.Store
	audit *audit.Recorder
}

func (s *IncidentService) List(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	return s.store.ListIncidents(ctx, status)
}

func (s *IncidentService) Get(ctx context.Context, id int64) (*domain.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

// Assign hands an open incident to userID.
func (s *IncidentService) Assign(ctx context.Context, id, userID int64, actor string) (*domain.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status == domain.IncidentClosed {
		return nil, ErrIncidentClosed
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("assignee %d: %w", userID, err)
	}

	inc.Status = domain.IncidentAssigned
	inc.AssignedTo = audit.ID(user.ID)
	if err := s.store.UpdateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("assign incident: %w", err)
	}
	_, _ = s.audit.Record(ctx, domain.AuditEvent{
		Actor:      actor,
		Kind:       audit.KindIncidentAssigned,
		Action:     fmt.Sprintf("incident %d assigned to %s", inc.ID, user.Username),
		SensorID:   inc.SensorID,
		ReadingID:  inc.ReadingID,
		IncidentID: audit.ID(inc.ID),
	})
	return inc, nil
}

func (s *IncidentService) Close(ctx context.Context, id int64, actor string) (*domain.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status == domain.IncidentClosed {
		return nil, ErrIncidentClosed
	}

	now := time.Now().UTC()
	inc.Status = domain.IncidentClosed
	inc.ClosedAt = &now
	if err := s.store.UpdateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("close incident: %w", err)
	}
	_, _ = s.audit.Record(ctx, domain.AuditEvent{
		Actor:      actor,
		Kind:       audit.KindIncidentClosed,
		Action:     fmt.Sprintf("incident %d closed", inc.ID),
		SensorID:   inc.SensorID,
		ReadingID:  inc.ReadingID,
		IncidentID: audit.ID(inc.ID),
	})
	return inc, nil
}

// EnsureUser provisions an assignee by username.
func (s *IncidentService) EnsureUser(ctx context.Context, username, email string) (*domain.User, error) {
	return s.store.EnsureUser(ctx, username, email)
}
