package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool          *pgxpool.Pool
	retryAttempts int
	retryBackoff  time.Duration
}

type Options struct {
	RetryAttempts int
	RetryBackoff  time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	attempts := options.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := options.RetryBackoff
	if backoff <= 0 {
		backoff = 25 * time.Millisecond
	}
	return &Store{
		pool:          pool,
		retryAttempts: attempts,
		retryBackoff:  backoff,
	}
}

// withTx runs fn inside a transaction and retries serialization failures a
// bounded number of times before surfacing ErrConcurrencyConflict.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.retryBackoff):
			}
		}

		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		err = fn(tx)
		if err == nil {
			if err = tx.Commit(ctx); err == nil {
				return nil
			}
		} else {
			_ = tx.Rollback(ctx)
		}

		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	if lastErr != nil {
		return store.ErrConcurrencyConflict
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// mapConstraint turns unique-violation errors from the invariant indexes into
// the matching domain conflict.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "uq_active_operation_per_point":
		return store.ErrServicePointBusy
	case "uq_active_operation_per_user":
		return store.ErrUserBusy
	case "uq_open_treatment_per_operation", "uq_open_treatment_per_ticket":
		return store.ErrTreatmentOpen
	case "uq_open_pause_per_operation":
		return store.ErrInvalidState
	case "clients_register_number_key":
		return store.ErrDuplicateClient
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func occurredOrNow(occurredAt time.Time) time.Time {
	if occurredAt.IsZero() {
		return time.Now().UTC()
	}
	return occurredAt
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	err := row.Scan(&ticket.TicketID, &ticket.SectorID, &ticket.ClientID, &ticket.Priority, &ticket.Status, &ticket.CreatedAt)
	return ticket, err
}

func scanOperation(row pgx.Row) (models.Operation, error) {
	var op models.Operation
	err := row.Scan(&op.OperationID, &op.ServicePointID, &op.UserID, &op.Status, &op.CreatedAt, &op.UpdatedAt)
	return op, err
}

func scanTreatment(row pgx.Row) (models.Treatment, error) {
	var tr models.Treatment
	err := row.Scan(&tr.TreatmentID, &tr.TicketID, &tr.OperationID, &tr.Status, &tr.ResolutionType, &tr.DurationMinutes, &tr.CalledAgainAt, &tr.CreatedAt, &tr.UpdatedAt)
	return tr, err
}

const ticketColumns = "ticket_id, sector_id, client_id, priority, status, created_at"
const operationColumns = "operation_id, service_point_id, user_id, status, created_at, updated_at"
const treatmentColumns = "treatment_id, ticket_id, operation_id, status, resolution_type, duration_minutes, called_again_at, created_at, updated_at"

func getTicket(ctx context.Context, tx pgx.Tx, ticketID string, lock bool) (models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, err
}

func getOperation(ctx context.Context, tx pgx.Tx, operationID string, lock bool) (models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE operation_id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	op, err := scanOperation(tx.QueryRow(ctx, query, operationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Operation{}, store.ErrOperationNotFound
	}
	return op, err
}

func getTreatment(ctx context.Context, tx pgx.Tx, treatmentID string, lock bool) (models.Treatment, error) {
	query := `SELECT ` + treatmentColumns + ` FROM treatments WHERE treatment_id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	tr, err := scanTreatment(tx.QueryRow(ctx, query, treatmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Treatment{}, store.ErrTreatmentNotFound
	}
	return tr, err
}

func hasOpenTreatment(ctx context.Context, tx pgx.Tx, operationID string) (bool, error) {
	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM treatments
			WHERE operation_id = $1 AND status = $2
		)
	`, operationID, models.TreatmentInService)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func setAvailability(ctx context.Context, tx pgx.Tx, servicePointID, availability string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE service_points SET availability = $1 WHERE service_point_id = $2
	`, availability, servicePointID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrServicePointNotFound
	}
	return nil
}
