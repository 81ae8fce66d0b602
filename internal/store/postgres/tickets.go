package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	var ticket models.Ticket
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "ticket.create", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			ticket, err = getTicket(ctx, tx, targetID, false)
			return err
		}

		var exists bool
		row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE client_id = $1)`, input.ClientID)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrClientNotFound
		}
		row = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sectors WHERE sector_id = $1)`, input.SectorID)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrSectorNotFound
		}

		createdAt := input.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		ticket, err = scanTicket(tx.QueryRow(ctx, `
			INSERT INTO tickets (ticket_id, sector_id, client_id, priority, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+ticketColumns+`
		`, uuid.NewString(), input.SectorID, input.ClientID, input.Priority, models.TicketPending, createdAt))
		if err != nil {
			return err
		}

		if err := insertActionRequest(ctx, tx, "ticket.create", input.RequestID, ticket.TicketID); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, "ticket.created", map[string]interface{}{
			"ticket_id":  ticket.TicketID,
			"sector_id":  ticket.SectorID,
			"client_id":  ticket.ClientID,
			"priority":   ticket.Priority,
			"status":     ticket.Status,
			"created_at": ticket.CreatedAt,
		})
	})
	if err != nil {
		return models.Ticket{}, err
	}
	ticket.RequestID = input.RequestID
	return ticket, nil
}

func (s *Store) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, error) {
	var ticket models.Ticket
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "ticket.cancel", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			ticket, err = getTicket(ctx, tx, targetID, false)
			return err
		}

		ticket, err = getTicket(ctx, tx, input.TicketID, true)
		if err != nil {
			return err
		}
		if !store.ValidTicketTransition("cancel", ticket.Status) {
			return store.ErrTicketClosed
		}

		occurredAt := occurredOrNow(input.OccurredAt)

		// An in-attendance ticket drags its open treatment down with it so the
		// operation is immediately free to claim again.
		if ticket.Status == models.TicketInAttendance {
			var tr models.Treatment
			tr, err = scanTreatment(tx.QueryRow(ctx, `
				SELECT `+treatmentColumns+` FROM treatments
				WHERE ticket_id = $1 AND status = $2
				FOR UPDATE
			`, ticket.TicketID, models.TreatmentInService))
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if err == nil {
				duration := store.DurationMinutes(tr.CreatedAt, occurredAt)
				if _, err = tx.Exec(ctx, `
					UPDATE treatments
					SET status = $1, duration_minutes = $2, updated_at = $3
					WHERE treatment_id = $4
				`, models.TreatmentCancelled, duration, occurredAt, tr.TreatmentID); err != nil {
					return err
				}
				if err = insertOutboxEvent(ctx, tx, "treatment.cancelled", map[string]interface{}{
					"treatment_id": tr.TreatmentID,
					"ticket_id":    tr.TicketID,
					"operation_id": tr.OperationID,
				}); err != nil {
					return err
				}
			}
		}

		ticket, err = scanTicket(tx.QueryRow(ctx, `
			UPDATE tickets SET status = $1 WHERE ticket_id = $2
			RETURNING `+ticketColumns+`
		`, models.TicketCanceled, ticket.TicketID))
		if err != nil {
			return err
		}

		if err = insertActionRequest(ctx, tx, "ticket.cancel", input.RequestID, ticket.TicketID); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, "ticket.cancelled", map[string]interface{}{
			"ticket_id": ticket.TicketID,
			"sector_id": ticket.SectorID,
			"status":    ticket.Status,
		})
	})
	if err != nil {
		return models.Ticket{}, err
	}
	ticket.RequestID = input.RequestID
	return ticket, nil
}

// NextEligibleTicket is the side-effect-free dispatcher view: highest priority
// first, then FIFO by creation time, ties broken by id for determinism.
func (s *Store) NextEligibleTicket(ctx context.Context, sectorID string) (models.Ticket, bool, error) {
	ticket, err := scanTicket(s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE sector_id = $1 AND status = $2
		ORDER BY priority DESC, created_at ASC, ticket_id ASC
		LIMIT 1
	`, sectorID, models.TicketPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) SnapshotTickets(ctx context.Context, sectorID string) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE sector_id = $1 AND status IN ($2, $3)
		ORDER BY priority DESC, created_at ASC, ticket_id ASC
	`, sectorID, models.TicketPending, models.TicketInAttendance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}
