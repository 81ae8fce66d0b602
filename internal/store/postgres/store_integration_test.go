package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestDispatchOrder(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	base := time.Now().UTC().Add(-time.Hour)

	normalFirst := createTicket(t, ctx, st, fx, models.PriorityNormal, base)
	normalSecond := createTicket(t, ctx, st, fx, models.PriorityNormal, base.Add(time.Minute))
	priorityLate := createTicket(t, ctx, st, fx, models.PriorityPriority, base.Add(2*time.Minute))

	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	want := []string{priorityLate.TicketID, normalFirst.TicketID, normalSecond.TicketID}
	for i, wantID := range want {
		result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
			RequestID:   uuid.NewString(),
			OperationID: op.OperationID,
		})
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if !result.Claimed {
			t.Fatalf("claim %d: queue unexpectedly empty", i)
		}
		if result.Ticket.TicketID != wantID {
			t.Fatalf("claim %d: got %s, want %s", i, result.Ticket.TicketID, wantID)
		}
		finishTreatment(t, ctx, st, result.Treatment.TreatmentID)
	}
}

func TestClaimConcurrencyDistinctTickets(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	base := time.Now().UTC().Add(-time.Hour)
	createTicket(t, ctx, st, fx, models.PriorityNormal, base)
	createTicket(t, ctx, st, fx, models.PriorityNormal, base.Add(time.Second))

	opA := startOperation(t, ctx, st, fx.pointA, fx.userA)
	opB := startOperation(t, ctx, st, fx.pointB, fx.userB)

	type claimOutcome struct {
		result store.ClaimResult
		err    error
	}
	results := make(chan claimOutcome, 2)
	var wg sync.WaitGroup
	for _, opID := range []string{opA.OperationID, opB.OperationID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
				RequestID:   uuid.NewString(),
				OperationID: id,
			})
			results <- claimOutcome{result: result, err: err}
		}(opID)
	}
	wg.Wait()
	close(results)

	var ids []string
	for outcome := range results {
		if outcome.err != nil {
			t.Fatalf("claim error: %v", outcome.err)
		}
		if !outcome.result.Claimed {
			t.Fatal("expected both operations to claim a ticket")
		}
		ids = append(ids, outcome.result.Ticket.TicketID)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected two distinct tickets, got %v", ids)
	}
}

func TestClaimEmptyQueueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	requestID := uuid.NewString()
	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   requestID,
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if result.Claimed {
		t.Fatal("expected empty queue")
	}

	// A ticket arriving later must not change the recorded outcome of the
	// original request.
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	replay, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   requestID,
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("replay claim: %v", err)
	}
	if replay.Claimed {
		t.Fatal("replay must return the original empty outcome")
	}

	fresh, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("fresh claim: %v", err)
	}
	if !fresh.Claimed {
		t.Fatal("fresh request should claim the waiting ticket")
	}
}

func TestStartOperationGuards(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	startOperation(t, ctx, st, fx.pointA, fx.userA)

	_, err := st.StartOperation(ctx, store.StartOperationInput{
		RequestID:      uuid.NewString(),
		UserID:         fx.userB,
		ServicePointID: fx.pointA,
	})
	if !errors.Is(err, store.ErrServicePointBusy) {
		t.Fatalf("second start on same point: %v, want ErrServicePointBusy", err)
	}

	_, err = st.StartOperation(ctx, store.StartOperationInput{
		RequestID:      uuid.NewString(),
		UserID:         fx.userA,
		ServicePointID: fx.pointB,
	})
	if !errors.Is(err, store.ErrUserBusy) {
		t.Fatalf("same user on another point: %v, want ErrUserBusy", err)
	}
}

func TestPauseLifecycle(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	pause, err := st.PauseOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
		Reason:      "lunch",
	})
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if pause.Status != models.PauseInProgress {
		t.Fatalf("pause status = %q", pause.Status)
	}
	if got := pointAvailability(t, ctx, pool, fx.pointA); got != models.AvailabilityPaused {
		t.Fatalf("availability = %q, want paused", got)
	}

	// Claiming while paused is rejected.
	_, err = st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if !errors.Is(err, store.ErrOperationNotOperating) {
		t.Fatalf("claim while paused: %v, want ErrOperationNotOperating", err)
	}

	resumed, err := st.ResumeOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != models.OperationOperating {
		t.Fatalf("operation status = %q", resumed.Status)
	}
	if got := pointAvailability(t, ctx, pool, fx.pointA); got != models.AvailabilityOperating {
		t.Fatalf("availability = %q, want operating", got)
	}

	var status string
	var duration *int
	row := pool.QueryRow(ctx, `
		SELECT status, duration_minutes FROM pauses WHERE pause_id = $1
	`, pause.PauseID)
	if err := row.Scan(&status, &duration); err != nil {
		t.Fatalf("load pause: %v", err)
	}
	if status != models.PauseFinished {
		t.Fatalf("pause status = %q, want finished", status)
	}
	if duration == nil || *duration < 1 {
		t.Fatalf("pause duration = %v, want at least 1 minute", duration)
	}
}

func TestPauseBlockedByOpenTreatment(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !result.Claimed {
		t.Fatalf("claim: claimed=%v err=%v", result.Claimed, err)
	}

	_, err = st.PauseOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
		Reason:      "break",
	})
	if !errors.Is(err, store.ErrTreatmentOpen) {
		t.Fatalf("pause mid-treatment: %v, want ErrTreatmentOpen", err)
	}

	// The system pause that follows a closed treatment bypasses the guard.
	_, err = st.PauseOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
		Reason:      models.ReasonFinishedService,
	})
	if err != nil {
		t.Fatalf("finished-service pause: %v", err)
	}
}

func TestFinishTreatment(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !result.Claimed {
		t.Fatalf("claim: claimed=%v err=%v", result.Claimed, err)
	}

	requestID := uuid.NewString()
	tr, err := st.FinishTreatment(ctx, store.TreatmentActionInput{
		RequestID:      requestID,
		TreatmentID:    result.Treatment.TreatmentID,
		ResolutionType: "complaint",
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if tr.Status != models.TreatmentFinished {
		t.Fatalf("treatment status = %q", tr.Status)
	}
	if tr.ResolutionType == nil || *tr.ResolutionType != "complaint" {
		t.Fatalf("resolution = %v", tr.ResolutionType)
	}
	if tr.DurationMinutes == nil || *tr.DurationMinutes < 1 {
		t.Fatalf("duration = %v, want at least 1 minute", tr.DurationMinutes)
	}

	var ticketStatus string
	row := pool.QueryRow(ctx, `SELECT status FROM tickets WHERE ticket_id = $1`, tr.TicketID)
	if err := row.Scan(&ticketStatus); err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	if ticketStatus != models.TicketFinished {
		t.Fatalf("ticket status = %q, want finished", ticketStatus)
	}

	// Replay returns the original outcome; a new request hits the guard.
	replay, err := st.FinishTreatment(ctx, store.TreatmentActionInput{
		RequestID:      requestID,
		TreatmentID:    tr.TreatmentID,
		ResolutionType: "complaint",
	})
	if err != nil {
		t.Fatalf("replay finish: %v", err)
	}
	if replay.TreatmentID != tr.TreatmentID {
		t.Fatalf("replay returned %s, want %s", replay.TreatmentID, tr.TreatmentID)
	}
	_, err = st.FinishTreatment(ctx, store.TreatmentActionInput{
		RequestID:      uuid.NewString(),
		TreatmentID:    tr.TreatmentID,
		ResolutionType: "complaint",
	})
	if !errors.Is(err, store.ErrTreatmentClosed) {
		t.Fatalf("second finish: %v, want ErrTreatmentClosed", err)
	}
}

func TestFinishTreatmentOpensFollowUpPause(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !result.Claimed {
		t.Fatalf("claim: claimed=%v err=%v", result.Claimed, err)
	}

	_, err = st.FinishTreatment(ctx, store.TreatmentActionInput{
		RequestID:       uuid.NewString(),
		TreatmentID:     result.Treatment.TreatmentID,
		ResolutionType:  "complaint",
		PauseAfterClose: true,
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	var opStatus string
	row := pool.QueryRow(ctx, `SELECT status FROM operations WHERE operation_id = $1`, op.OperationID)
	if err := row.Scan(&opStatus); err != nil {
		t.Fatalf("load operation: %v", err)
	}
	if opStatus != models.OperationPaused {
		t.Fatalf("operation status = %q, want paused", opStatus)
	}
	if got := pointAvailability(t, ctx, pool, fx.pointA); got != models.AvailabilityPaused {
		t.Fatalf("availability = %q, want paused", got)
	}

	var reason, pauseStatus string
	row = pool.QueryRow(ctx, `
		SELECT reason, status FROM pauses WHERE operation_id = $1
	`, op.OperationID)
	if err := row.Scan(&reason, &pauseStatus); err != nil {
		t.Fatalf("load pause: %v", err)
	}
	if reason != models.ReasonFinishedService || pauseStatus != models.PauseInProgress {
		t.Fatalf("pause = %q/%q, want finished-service in-progress", reason, pauseStatus)
	}

	// Resuming puts the operation back on the floor and claims work again.
	_, err = st.ResumeOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	next, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !next.Claimed {
		t.Fatalf("claim after resume: claimed=%v err=%v", next.Claimed, err)
	}
}

func TestFinishTreatmentWithoutFollowUpPauseStaysOperating(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !result.Claimed {
		t.Fatalf("claim: claimed=%v err=%v", result.Claimed, err)
	}
	finishTreatment(t, ctx, st, result.Treatment.TreatmentID)

	var opStatus string
	row := pool.QueryRow(ctx, `SELECT status FROM operations WHERE operation_id = $1`, op.OperationID)
	if err := row.Scan(&opStatus); err != nil {
		t.Fatalf("load operation: %v", err)
	}
	if opStatus != models.OperationOperating {
		t.Fatalf("operation status = %q, want operating", opStatus)
	}
}

func TestCancelTicketInAttendanceCancelsTreatment(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !result.Claimed {
		t.Fatalf("claim: claimed=%v err=%v", result.Claimed, err)
	}

	ticket, err := st.CancelTicket(ctx, store.TicketActionInput{
		RequestID: uuid.NewString(),
		TicketID:  result.Ticket.TicketID,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ticket.Status != models.TicketCanceled {
		t.Fatalf("ticket status = %q", ticket.Status)
	}

	var treatmentStatus string
	row := pool.QueryRow(ctx, `SELECT status FROM treatments WHERE treatment_id = $1`, result.Treatment.TreatmentID)
	if err := row.Scan(&treatmentStatus); err != nil {
		t.Fatalf("load treatment: %v", err)
	}
	if treatmentStatus != models.TreatmentCancelled {
		t.Fatalf("treatment status = %q, want cancelled", treatmentStatus)
	}

	// The operation is free to claim again right away.
	_, err = st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("claim after cancel: %v", err)
	}
}

func TestEndOperation(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())
	op := startOperation(t, ctx, st, fx.pointA, fx.userA)

	result, err := st.ClaimNextTicket(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil || !result.Claimed {
		t.Fatalf("claim: claimed=%v err=%v", result.Claimed, err)
	}

	_, err = st.EndOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if !errors.Is(err, store.ErrTreatmentOpen) {
		t.Fatalf("end with open treatment: %v, want ErrTreatmentOpen", err)
	}

	finishTreatment(t, ctx, st, result.Treatment.TreatmentID)

	ended, err := st.EndOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != models.OperationFinished {
		t.Fatalf("operation status = %q", ended.Status)
	}
	if got := pointAvailability(t, ctx, pool, fx.pointA); got != models.AvailabilityFree {
		t.Fatalf("availability = %q, want free", got)
	}

	// Everything on a finished operation is rejected the same way.
	_, err = st.PauseOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
		Reason:      "lunch",
	})
	if !errors.Is(err, store.ErrOperationFinished) {
		t.Fatalf("pause after end: %v, want ErrOperationFinished", err)
	}

	// The point and the user are available for a fresh operation.
	startOperation(t, ctx, st, fx.pointA, fx.userA)

	// Ending again with a new request is rejected, not silently replayed.
	_, err = st.EndOperation(ctx, store.OperationActionInput{
		RequestID:   uuid.NewString(),
		OperationID: op.OperationID,
	})
	if !errors.Is(err, store.ErrOperationFinished) {
		t.Fatalf("end after end: %v, want ErrOperationFinished", err)
	}
}

func TestRequestIDReusedAcrossActions(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	requestID := uuid.NewString()
	_, err := st.CreateTicket(ctx, store.CreateTicketInput{
		RequestID: requestID,
		ClientID:  fx.clientID,
		SectorID:  fx.sectorID,
		Priority:  models.PriorityNormal,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	_, err = st.StartOperation(ctx, store.StartOperationInput{
		RequestID:      requestID,
		UserID:         fx.userA,
		ServicePointID: fx.pointA,
	})
	if !errors.Is(err, store.ErrRequestIDReused) {
		t.Fatalf("start with reused request_id: %v, want ErrRequestIDReused", err)
	}

	// The rejected start left no operation behind.
	_, err = st.StartOperation(ctx, store.StartOperationInput{
		RequestID:      uuid.NewString(),
		UserID:         fx.userA,
		ServicePointID: fx.pointA,
	})
	if err != nil {
		t.Fatalf("fresh start: %v", err)
	}
}

func TestListOutboxEventsCursorSurvivesEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	createdAt := time.Now().UTC().Truncate(time.Second)
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := pool.Exec(ctx, `
			INSERT INTO outbox_events (event_id, type, payload_json, created_at)
			VALUES ($1, $2, $3, $4)
		`, id, "ticket.created", []byte(`{}`), createdAt); err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	after := createdAt.Add(-time.Second)
	afterID := ""
	var got []string
	for i := 0; i < len(ids); i++ {
		events, err := st.ListOutboxEvents(ctx, after, afterID, 1)
		if err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
		if len(events) != 1 {
			t.Fatalf("page %d: got %d events, want 1", i, len(events))
		}
		got = append(got, events[0].EventID)
		after = events[0].CreatedAt
		afterID = events[0].EventID
	}
	for i, id := range ids {
		if got[i] != id {
			t.Fatalf("page %d: got %s, want %s (all pages: %v)", i, got[i], id, got)
		}
	}

	events, err := st.ListOutboxEvents(ctx, after, afterID, 1)
	if err != nil {
		t.Fatalf("final page: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("final page: got %d events, want 0", len(events))
	}
}

func TestCreateTicketIdempotency(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	requestID := uuid.NewString()
	input := store.CreateTicketInput{
		RequestID: requestID,
		ClientID:  fx.clientID,
		SectorID:  fx.sectorID,
		Priority:  models.PriorityNormal,
	}

	first, err := st.CreateTicket(ctx, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := st.CreateTicket(ctx, input)
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if first.TicketID != second.TicketID {
		t.Fatal("expected same ticket for duplicate request")
	}

	var count int
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE type = 'ticket.created'`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ticket.created event, got %d", count)
	}
}

func TestDeleteSectorCascades(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	fx := seedFixture(t, ctx, st)
	createTicket(t, ctx, st, fx, models.PriorityNormal, time.Now().UTC())

	if err := st.DeleteSector(ctx, fx.sectorID); err != nil {
		t.Fatalf("delete sector: %v", err)
	}

	var count int
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_points WHERE sector_id = $1`, fx.sectorID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count points: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade delete of service points, got %d", count)
	}
	row = pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE sector_id = $1`, fx.sectorID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade delete of tickets, got %d", count)
	}
}

type fixture struct {
	sectorID string
	clientID string
	pointA   string
	pointB   string
	userA    string
	userB    string
}

func seedFixture(t *testing.T, ctx context.Context, st *Store) fixture {
	t.Helper()
	sector, err := st.CreateSector(ctx, "Atendimento Geral")
	if err != nil {
		t.Fatalf("create sector: %v", err)
	}
	client, err := st.CreateClient(ctx, uuid.NewString()[:13], "Maria Souza")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	pointA, err := st.CreateServicePoint(ctx, sector.SectorID, "Guiche 1", models.PriorityNormal)
	if err != nil {
		t.Fatalf("create point A: %v", err)
	}
	pointB, err := st.CreateServicePoint(ctx, sector.SectorID, "Guiche 2", models.PriorityPriority)
	if err != nil {
		t.Fatalf("create point B: %v", err)
	}
	return fixture{
		sectorID: sector.SectorID,
		clientID: client.ClientID,
		pointA:   pointA.ServicePointID,
		pointB:   pointB.ServicePointID,
		userA:    uuid.NewString(),
		userB:    uuid.NewString(),
	}
}

func createTicket(t *testing.T, ctx context.Context, st *Store, fx fixture, priority int, createdAt time.Time) models.Ticket {
	t.Helper()
	ticket, err := st.CreateTicket(ctx, store.CreateTicketInput{
		RequestID: uuid.NewString(),
		ClientID:  fx.clientID,
		SectorID:  fx.sectorID,
		Priority:  priority,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func startOperation(t *testing.T, ctx context.Context, st *Store, pointID, userID string) models.Operation {
	t.Helper()
	op, err := st.StartOperation(ctx, store.StartOperationInput{
		RequestID:      uuid.NewString(),
		UserID:         userID,
		ServicePointID: pointID,
	})
	if err != nil {
		t.Fatalf("start operation: %v", err)
	}
	return op
}

func finishTreatment(t *testing.T, ctx context.Context, st *Store, treatmentID string) {
	t.Helper()
	_, err := st.FinishTreatment(ctx, store.TreatmentActionInput{
		RequestID:      uuid.NewString(),
		TreatmentID:    treatmentID,
		ResolutionType: "consultation",
	})
	if err != nil {
		t.Fatalf("finish treatment: %v", err)
	}
}

func pointAvailability(t *testing.T, ctx context.Context, pool *pgxpool.Pool, pointID string) string {
	t.Helper()
	var availability string
	row := pool.QueryRow(ctx, `SELECT availability FROM service_points WHERE service_point_id = $1`, pointID)
	if err := row.Scan(&availability); err != nil {
		t.Fatalf("load availability: %v", err)
	}
	return availability
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool, Options{})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
