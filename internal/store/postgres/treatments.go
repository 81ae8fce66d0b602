package postgres

import (
	"context"
	"errors"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClaimNextTicket atomically assigns the next eligible ticket of the
// operation's sector to the operation and opens a treatment for it. The
// selection runs under FOR UPDATE SKIP LOCKED so concurrent operations in the
// same sector never claim the same ticket and never block each other.
func (s *Store) ClaimNextTicket(ctx context.Context, input store.OperationActionInput) (store.ClaimResult, error) {
	var result store.ClaimResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, empty, err := findActionRequest(ctx, tx, "treatment.claim", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			if empty {
				result = store.ClaimResult{Claimed: false}
				return nil
			}
			tr, err := getTreatment(ctx, tx, targetID, false)
			if err != nil {
				return err
			}
			ticket, err := getTicket(ctx, tx, tr.TicketID, false)
			if err != nil {
				return err
			}
			result = store.ClaimResult{Claimed: true, Treatment: tr, Ticket: ticket}
			return nil
		}

		op, err := getOperation(ctx, tx, input.OperationID, true)
		if err != nil {
			return err
		}
		if op.Status == models.OperationFinished {
			return store.ErrOperationFinished
		}
		if !store.ValidOperationTransition("claim-next", op.Status) {
			return store.ErrOperationNotOperating
		}
		open, err := hasOpenTreatment(ctx, tx, op.OperationID)
		if err != nil {
			return err
		}
		if open {
			return store.ErrTreatmentOpen
		}

		var sectorID string
		row := tx.QueryRow(ctx, `
			SELECT sector_id FROM service_points WHERE service_point_id = $1
		`, op.ServicePointID)
		if err := row.Scan(&sectorID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrServicePointNotFound
			}
			return err
		}

		occurredAt := occurredOrNow(input.OccurredAt)
		ticket, err := scanTicket(tx.QueryRow(ctx, `
			WITH next_ticket AS (
				SELECT ticket_id FROM tickets
				WHERE sector_id = $1 AND status = $2
				ORDER BY priority DESC, created_at ASC, ticket_id ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			UPDATE tickets
			SET status = $3
			FROM next_ticket
			WHERE tickets.ticket_id = next_ticket.ticket_id
			RETURNING tickets.ticket_id, tickets.sector_id, tickets.client_id, tickets.priority, tickets.status, tickets.created_at
		`, sectorID, models.TicketPending, models.TicketInAttendance))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				result = store.ClaimResult{Claimed: false}
				return insertActionRequest(ctx, tx, "treatment.claim", input.RequestID, "")
			}
			return err
		}

		tr, err := scanTreatment(tx.QueryRow(ctx, `
			INSERT INTO treatments (treatment_id, ticket_id, operation_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING `+treatmentColumns+`
		`, uuid.NewString(), ticket.TicketID, op.OperationID, models.TreatmentInService, occurredAt))
		if err != nil {
			return mapConstraint(err)
		}

		if err = insertActionRequest(ctx, tx, "treatment.claim", input.RequestID, tr.TreatmentID); err != nil {
			return err
		}
		if err = insertOutboxEvent(ctx, tx, "ticket.claimed", map[string]interface{}{
			"ticket_id":    ticket.TicketID,
			"sector_id":    ticket.SectorID,
			"status":       ticket.Status,
			"treatment_id": tr.TreatmentID,
			"operation_id": op.OperationID,
		}); err != nil {
			return err
		}
		result = store.ClaimResult{Claimed: true, Treatment: tr, Ticket: ticket}
		return nil
	})
	if err != nil {
		return store.ClaimResult{}, err
	}
	return result, nil
}

// CallCustomerAgain re-announces the consumer being served. The only persisted
// effect is the paging timestamp; external display/audio systems consume the
// outbox event.
func (s *Store) CallCustomerAgain(ctx context.Context, input store.TreatmentActionInput) (models.Treatment, error) {
	var tr models.Treatment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "treatment.call-again", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			tr, err = getTreatment(ctx, tx, targetID, false)
			return err
		}

		tr, err = getTreatment(ctx, tx, input.TreatmentID, true)
		if err != nil {
			return err
		}
		if !store.ValidTreatmentTransition("call-again", tr.Status) {
			return store.ErrTreatmentClosed
		}

		occurredAt := occurredOrNow(input.OccurredAt)
		tr, err = scanTreatment(tx.QueryRow(ctx, `
			UPDATE treatments SET called_again_at = $1, updated_at = $1
			WHERE treatment_id = $2
			RETURNING `+treatmentColumns+`
		`, occurredAt, tr.TreatmentID))
		if err != nil {
			return err
		}
		if err = insertActionRequest(ctx, tx, "treatment.call-again", input.RequestID, tr.TreatmentID); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, "treatment.called_again", map[string]interface{}{
			"treatment_id": tr.TreatmentID,
			"ticket_id":    tr.TicketID,
			"operation_id": tr.OperationID,
		})
	})
	if err != nil {
		return models.Treatment{}, err
	}
	return tr, nil
}

func (s *Store) FinishTreatment(ctx context.Context, input store.TreatmentActionInput) (models.Treatment, error) {
	return s.closeTreatment(ctx, input, "treatment.finish", models.TreatmentFinished, models.TicketFinished, input.ResolutionType)
}

func (s *Store) CancelTreatmentAndTicket(ctx context.Context, input store.TreatmentActionInput) (models.Treatment, error) {
	return s.closeTreatment(ctx, input, "treatment.cancel", models.TreatmentCancelled, models.TicketCanceled, "")
}

func (s *Store) closeTreatment(ctx context.Context, input store.TreatmentActionInput, action, treatmentStatus, ticketStatus, resolutionType string) (models.Treatment, error) {
	var tr models.Treatment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, action, input.RequestID)
		if err != nil {
			return err
		}
		if found {
			tr, err = getTreatment(ctx, tx, targetID, false)
			return err
		}

		tr, err = getTreatment(ctx, tx, input.TreatmentID, true)
		if err != nil {
			return err
		}
		if tr.Status != models.TreatmentInService {
			return store.ErrTreatmentClosed
		}

		occurredAt := occurredOrNow(input.OccurredAt)
		duration := store.DurationMinutes(tr.CreatedAt, occurredAt)

		var resolution interface{}
		if resolutionType != "" {
			resolution = resolutionType
		}
		tr, err = scanTreatment(tx.QueryRow(ctx, `
			UPDATE treatments
			SET status = $1, resolution_type = $2, duration_minutes = $3, updated_at = $4
			WHERE treatment_id = $5
			RETURNING `+treatmentColumns+`
		`, treatmentStatus, resolution, duration, occurredAt, tr.TreatmentID))
		if err != nil {
			return err
		}

		var ticket models.Ticket
		ticket, err = scanTicket(tx.QueryRow(ctx, `
			UPDATE tickets SET status = $1 WHERE ticket_id = $2
			RETURNING `+ticketColumns+`
		`, ticketStatus, tr.TicketID))
		if err != nil {
			return err
		}

		// The system-issued finished-service pause opens together with the
		// close so the professional is off the floor the instant the
		// treatment ends.
		if input.PauseAfterClose {
			op, err := getOperation(ctx, tx, tr.OperationID, true)
			if err != nil {
				return err
			}
			if op.Status == models.OperationOperating {
				if _, err = openPause(ctx, tx, op, models.ReasonFinishedService, occurredAt); err != nil {
					return err
				}
			}
		}

		if err = insertActionRequest(ctx, tx, action, input.RequestID, tr.TreatmentID); err != nil {
			return err
		}
		eventType := "treatment.finished"
		if treatmentStatus == models.TreatmentCancelled {
			eventType = "treatment.cancelled"
		}
		return insertOutboxEvent(ctx, tx, eventType, map[string]interface{}{
			"treatment_id":     tr.TreatmentID,
			"ticket_id":        ticket.TicketID,
			"operation_id":     tr.OperationID,
			"sector_id":        ticket.SectorID,
			"resolution_type":  tr.ResolutionType,
			"duration_minutes": tr.DurationMinutes,
		})
	})
	if err != nil {
		return models.Treatment{}, err
	}
	return tr, nil
}
