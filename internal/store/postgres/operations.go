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

func (s *Store) StartOperation(ctx context.Context, input store.StartOperationInput) (models.Operation, error) {
	var op models.Operation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "operation.start", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			op, err = getOperation(ctx, tx, targetID, false)
			return err
		}

		// Locking the service point row serializes concurrent starts on it.
		var sectorID string
		row := tx.QueryRow(ctx, `
			SELECT sector_id FROM service_points
			WHERE service_point_id = $1
			FOR UPDATE
		`, input.ServicePointID)
		if err := row.Scan(&sectorID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrServicePointNotFound
			}
			return err
		}

		var busy bool
		row = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM operations
				WHERE service_point_id = $1 AND status <> $2
			)
		`, input.ServicePointID, models.OperationFinished)
		if err := row.Scan(&busy); err != nil {
			return err
		}
		if busy {
			return store.ErrServicePointBusy
		}
		row = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM operations
				WHERE user_id = $1 AND status <> $2
			)
		`, input.UserID, models.OperationFinished)
		if err := row.Scan(&busy); err != nil {
			return err
		}
		if busy {
			return store.ErrUserBusy
		}

		now := time.Now().UTC()
		op, err = scanOperation(tx.QueryRow(ctx, `
			INSERT INTO operations (operation_id, service_point_id, user_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING `+operationColumns+`
		`, uuid.NewString(), input.ServicePointID, input.UserID, models.OperationOperating, now))
		if err != nil {
			return mapConstraint(err)
		}

		if err = setAvailability(ctx, tx, op.ServicePointID, models.AvailabilityOperating); err != nil {
			return err
		}
		if err = insertActionRequest(ctx, tx, "operation.start", input.RequestID, op.OperationID); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, "operation.started", map[string]interface{}{
			"operation_id":     op.OperationID,
			"service_point_id": op.ServicePointID,
			"sector_id":        sectorID,
			"user_id":          op.UserID,
		})
	})
	if err != nil {
		return models.Operation{}, err
	}
	return op, nil
}

func (s *Store) PauseOperation(ctx context.Context, input store.OperationActionInput) (models.Pause, error) {
	var pause models.Pause
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "operation.pause", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			pause, err = getPause(ctx, tx, targetID)
			return err
		}

		op, err := getOperation(ctx, tx, input.OperationID, true)
		if err != nil {
			return err
		}
		if op.Status == models.OperationFinished {
			return store.ErrOperationFinished
		}
		if !store.ValidOperationTransition("pause", op.Status) {
			return store.ErrOperationNotOperating
		}

		// A professional cannot step away mid-treatment. The system-issued
		// finished-service pause right after a treatment closes is exempt.
		if input.Reason != models.ReasonFinishedService {
			open, err := hasOpenTreatment(ctx, tx, op.OperationID)
			if err != nil {
				return err
			}
			if open {
				return store.ErrTreatmentOpen
			}
		}

		occurredAt := occurredOrNow(input.OccurredAt)
		pause, err = openPause(ctx, tx, op, input.Reason, occurredAt)
		if err != nil {
			return err
		}
		return insertActionRequest(ctx, tx, "operation.pause", input.RequestID, pause.PauseID)
	})
	if err != nil {
		return models.Pause{}, err
	}
	return pause, nil
}

func (s *Store) ResumeOperation(ctx context.Context, input store.OperationActionInput) (models.Operation, error) {
	var op models.Operation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "operation.resume", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			op, err = getOperation(ctx, tx, targetID, false)
			return err
		}

		op, err = getOperation(ctx, tx, input.OperationID, true)
		if err != nil {
			return err
		}
		if op.Status == models.OperationFinished {
			return store.ErrOperationFinished
		}
		if !store.ValidOperationTransition("resume", op.Status) {
			return store.ErrOperationNotPaused
		}

		occurredAt := occurredOrNow(input.OccurredAt)
		if err = closeOpenPause(ctx, tx, op.OperationID, occurredAt); err != nil {
			return err
		}

		op, err = scanOperation(tx.QueryRow(ctx, `
			UPDATE operations SET status = $1, updated_at = $2 WHERE operation_id = $3
			RETURNING `+operationColumns+`
		`, models.OperationOperating, occurredAt, op.OperationID))
		if err != nil {
			return err
		}
		if err = setAvailability(ctx, tx, op.ServicePointID, models.AvailabilityOperating); err != nil {
			return err
		}
		if err = insertActionRequest(ctx, tx, "operation.resume", input.RequestID, op.OperationID); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, "operation.resumed", map[string]interface{}{
			"operation_id":     op.OperationID,
			"service_point_id": op.ServicePointID,
		})
	})
	if err != nil {
		return models.Operation{}, err
	}
	return op, nil
}

func (s *Store) EndOperation(ctx context.Context, input store.OperationActionInput) (models.Operation, error) {
	var op models.Operation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		targetID, found, _, err := findActionRequest(ctx, tx, "operation.end", input.RequestID)
		if err != nil {
			return err
		}
		if found {
			op, err = getOperation(ctx, tx, targetID, false)
			return err
		}

		op, err = getOperation(ctx, tx, input.OperationID, true)
		if err != nil {
			return err
		}
		if !store.ValidOperationTransition("end", op.Status) {
			return store.ErrOperationFinished
		}

		open, err := hasOpenTreatment(ctx, tx, op.OperationID)
		if err != nil {
			return err
		}
		if open {
			return store.ErrTreatmentOpen
		}

		occurredAt := occurredOrNow(input.OccurredAt)
		if err = closeOpenPause(ctx, tx, op.OperationID, occurredAt); err != nil {
			return err
		}

		op, err = scanOperation(tx.QueryRow(ctx, `
			UPDATE operations SET status = $1, updated_at = $2 WHERE operation_id = $3
			RETURNING `+operationColumns+`
		`, models.OperationFinished, occurredAt, op.OperationID))
		if err != nil {
			return err
		}
		if err = setAvailability(ctx, tx, op.ServicePointID, models.AvailabilityFree); err != nil {
			return err
		}
		if err = insertActionRequest(ctx, tx, "operation.end", input.RequestID, op.OperationID); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, "operation.ended", map[string]interface{}{
			"operation_id":     op.OperationID,
			"service_point_id": op.ServicePointID,
		})
	})
	if err != nil {
		return models.Operation{}, err
	}
	return op, nil
}

const pauseColumns = "pause_id, operation_id, reason, status, duration_minutes, created_at, updated_at"

// openPause inserts an in-progress pause and takes the operation out of
// service, all in the caller's transaction.
func openPause(ctx context.Context, tx pgx.Tx, op models.Operation, reason string, occurredAt time.Time) (models.Pause, error) {
	pause, err := scanPause(tx.QueryRow(ctx, `
		INSERT INTO pauses (pause_id, operation_id, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+pauseColumns+`
	`, uuid.NewString(), op.OperationID, reason, models.PauseInProgress, occurredAt))
	if err != nil {
		return models.Pause{}, mapConstraint(err)
	}
	if _, err = tx.Exec(ctx, `
		UPDATE operations SET status = $1, updated_at = $2 WHERE operation_id = $3
	`, models.OperationPaused, occurredAt, op.OperationID); err != nil {
		return models.Pause{}, err
	}
	if err = setAvailability(ctx, tx, op.ServicePointID, models.AvailabilityPaused); err != nil {
		return models.Pause{}, err
	}
	if err = insertOutboxEvent(ctx, tx, "operation.paused", map[string]interface{}{
		"operation_id":     op.OperationID,
		"service_point_id": op.ServicePointID,
		"pause_id":         pause.PauseID,
		"reason":           pause.Reason,
	}); err != nil {
		return models.Pause{}, err
	}
	return pause, nil
}

func scanPause(row pgx.Row) (models.Pause, error) {
	var pause models.Pause
	err := row.Scan(&pause.PauseID, &pause.OperationID, &pause.Reason, &pause.Status, &pause.DurationMinutes, &pause.CreatedAt, &pause.UpdatedAt)
	return pause, err
}

func getPause(ctx context.Context, tx pgx.Tx, pauseID string) (models.Pause, error) {
	pause, err := scanPause(tx.QueryRow(ctx, `
		SELECT `+pauseColumns+` FROM pauses WHERE pause_id = $1
	`, pauseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Pause{}, store.ErrInvalidState
	}
	return pause, err
}

// closeOpenPause finishes the in-progress pause of an operation, if any,
// computing its duration from the pause start to closedAt.
func closeOpenPause(ctx context.Context, tx pgx.Tx, operationID string, closedAt time.Time) error {
	pause, err := scanPause(tx.QueryRow(ctx, `
		SELECT `+pauseColumns+` FROM pauses
		WHERE operation_id = $1 AND status = $2
		FOR UPDATE
	`, operationID, models.PauseInProgress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	duration := store.DurationMinutes(pause.CreatedAt, closedAt)
	_, err = tx.Exec(ctx, `
		UPDATE pauses SET status = $1, duration_minutes = $2, updated_at = $3
		WHERE pause_id = $4
	`, models.PauseFinished, duration, closedAt, pause.PauseID)
	return err
}
