package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
)

type CreateTicketInput struct {
	RequestID string
	ClientID  string
	SectorID  string
	Priority  int
	CreatedAt time.Time
}

type StartOperationInput struct {
	RequestID      string
	UserID         string
	ServicePointID string
}

type OperationActionInput struct {
	RequestID   string
	OperationID string
	Reason      string
	OccurredAt  time.Time
}

type TreatmentActionInput struct {
	RequestID      string
	TreatmentID    string
	ResolutionType string
	// PauseAfterClose opens a finished-service pause on the operation in the
	// same transaction that closes the treatment.
	PauseAfterClose bool
	OccurredAt      time.Time
}

type TicketActionInput struct {
	RequestID  string
	TicketID   string
	OccurredAt time.Time
}

// ClaimResult carries the outcome of a claim. Claimed=false with a nil error is
// the empty-queue case, a normal result rather than a failure.
type ClaimResult struct {
	Claimed   bool
	Treatment models.Treatment
	Ticket    models.Ticket
}

type AttendanceStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	CancelTicket(ctx context.Context, input TicketActionInput) (models.Ticket, error)
	NextEligibleTicket(ctx context.Context, sectorID string) (models.Ticket, bool, error)
	SnapshotTickets(ctx context.Context, sectorID string) ([]models.Ticket, error)

	StartOperation(ctx context.Context, input StartOperationInput) (models.Operation, error)
	PauseOperation(ctx context.Context, input OperationActionInput) (models.Pause, error)
	ResumeOperation(ctx context.Context, input OperationActionInput) (models.Operation, error)
	EndOperation(ctx context.Context, input OperationActionInput) (models.Operation, error)

	ClaimNextTicket(ctx context.Context, input OperationActionInput) (ClaimResult, error)
	CallCustomerAgain(ctx context.Context, input TreatmentActionInput) (models.Treatment, error)
	FinishTreatment(ctx context.Context, input TreatmentActionInput) (models.Treatment, error)
	CancelTreatmentAndTicket(ctx context.Context, input TreatmentActionInput) (models.Treatment, error)

	CreateSector(ctx context.Context, name string) (models.Sector, error)
	ListSectors(ctx context.Context) ([]models.Sector, error)
	DeleteSector(ctx context.Context, sectorID string) error
	CreateServicePoint(ctx context.Context, sectorID, name string, preferredPriority int) (models.ServicePoint, error)
	ListServicePoints(ctx context.Context, sectorID string) ([]models.ServicePoint, error)
	CreateClient(ctx context.Context, registerNumber, name string) (models.Client, error)
	GetClientByRegister(ctx context.Context, registerNumber string) (models.Client, bool, error)

	ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]OutboxEvent, error)
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
