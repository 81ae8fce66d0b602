package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
	"github.com/proconitumbiara/procon-app-sub000/internal/observability"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store   store.AttendanceStore
	metrics *observability.Metrics
}

type createTicketRequest struct {
	RequestID string `json:"request_id"`
	ClientID  string `json:"client_id"`
	SectorID  string `json:"sector_id"`
	Priority  int    `json:"priority"`
}

type startOperationRequest struct {
	RequestID      string `json:"request_id"`
	UserID         string `json:"user_id"`
	ServicePointID string `json:"service_point_id"`
}

type operationActionRequest struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

type treatmentActionRequest struct {
	RequestID       string `json:"request_id"`
	ResolutionType  string `json:"resolution_type"`
	PauseAfterClose bool   `json:"pause_after_close"`
}

type ticketActionRequest struct {
	RequestID string `json:"request_id"`
}

type claimResponse struct {
	Claimed   bool              `json:"claimed"`
	Treatment *models.Treatment `json:"treatment,omitempty"`
	Ticket    *models.Ticket    `json:"ticket,omitempty"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store store.AttendanceStore, metrics *observability.Metrics) *Handler {
	return &Handler{store: store, metrics: metrics}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/snapshot", h.handleTicketSnapshot)
	mux.HandleFunc("/api/tickets/next", h.handleNextTicket)
	mux.HandleFunc("/api/tickets/", h.handleTicketActions)
	mux.HandleFunc("/api/operations", h.handleOperations)
	mux.HandleFunc("/api/operations/", h.handleOperationActions)
	mux.HandleFunc("/api/treatments/", h.handleTreatmentActions)
	mux.HandleFunc("/api/sectors", h.handleSectors)
	mux.HandleFunc("/api/sectors/", h.handleSectorByID)
	mux.HandleFunc("/api/service-points", h.handleServicePoints)
	mux.HandleFunc("/api/clients", h.handleClients)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.SectorID = strings.TrimSpace(req.SectorID)

	if req.RequestID == "" || req.ClientID == "" || req.SectorID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, client_id, and sector_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.ClientID) || !isValidUUID(req.SectorID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, client_id, and sector_id must be UUIDs")
		return
	}
	if req.Priority != models.PriorityNormal && req.Priority != models.PriorityPriority {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "priority must be 0 (normal) or 1 (priority)")
		return
	}

	ticket, err := h.store.CreateTicket(r.Context(), store.CreateTicketInput{
		RequestID: req.RequestID,
		ClientID:  req.ClientID,
		SectorID:  req.SectorID,
		Priority:  req.Priority,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	h.metrics.IncrTicketCreated()
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sectorID := strings.TrimSpace(r.URL.Query().Get("sector_id"))
	if sectorID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id is required")
		return
	}
	if !isValidUUID(sectorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id must be a UUID")
		return
	}

	tickets, err := h.store.SnapshotTickets(r.Context(), sectorID)
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, tickets)
}

// handleNextTicket is a read-only peek at the head of the sector queue. It
// never assigns the ticket; claims go through the operation claim-next action.
func (h *Handler) handleNextTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sectorID := strings.TrimSpace(r.URL.Query().Get("sector_id"))
	if sectorID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id is required")
		return
	}
	if !isValidUUID(sectorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id must be a UUID")
		return
	}

	ticket, found, err := h.store.NextEligibleTicket(r.Context(), sectorID)
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticketID, action, ok := splitAction(r.URL.Path, "/api/tickets/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}
	if action != "cancel" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req ticketActionRequest
	if !decodeRequest(w, r, &req.RequestID, &req) {
		return
	}

	ticket, err := h.store.CancelTicket(r.Context(), store.TicketActionInput{
		RequestID:  req.RequestID,
		TicketID:   ticketID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req startOperationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.ServicePointID = strings.TrimSpace(req.ServicePointID)

	if req.RequestID == "" || req.UserID == "" || req.ServicePointID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, user_id, and service_point_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.UserID) || !isValidUUID(req.ServicePointID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, user_id, and service_point_id must be UUIDs")
		return
	}

	op, err := h.store.StartOperation(r.Context(), store.StartOperationInput{
		RequestID:      req.RequestID,
		UserID:         req.UserID,
		ServicePointID: req.ServicePointID,
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *Handler) handleOperationActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	operationID, action, ok := splitAction(r.URL.Path, "/api/operations/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !isValidUUID(operationID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "operation_id must be a UUID")
		return
	}

	switch action {
	case "pause":
		h.handlePauseOperation(w, r, operationID)
	case "resume":
		h.handleResumeOperation(w, r, operationID)
	case "end":
		h.handleEndOperation(w, r, operationID)
	case "claim-next":
		h.handleClaimNext(w, r, operationID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePauseOperation(w http.ResponseWriter, r *http.Request, operationID string) {
	var req operationActionRequest
	if !decodeRequest(w, r, &req.RequestID, &req) {
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "reason is required")
		return
	}
	// finished-service is reserved for the pause the system opens after a
	// treatment closes; callers pick from the remaining catalog.
	if !models.PauseReasons[req.Reason] || req.Reason == models.ReasonFinishedService {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "unknown pause reason")
		return
	}

	pause, err := h.store.PauseOperation(r.Context(), store.OperationActionInput{
		RequestID:   req.RequestID,
		OperationID: operationID,
		Reason:      req.Reason,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, pause)
}

func (h *Handler) handleResumeOperation(w http.ResponseWriter, r *http.Request, operationID string) {
	var req operationActionRequest
	if !decodeRequest(w, r, &req.RequestID, &req) {
		return
	}

	op, err := h.store.ResumeOperation(r.Context(), store.OperationActionInput{
		RequestID:   req.RequestID,
		OperationID: operationID,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *Handler) handleEndOperation(w http.ResponseWriter, r *http.Request, operationID string) {
	var req operationActionRequest
	if !decodeRequest(w, r, &req.RequestID, &req) {
		return
	}

	op, err := h.store.EndOperation(r.Context(), store.OperationActionInput{
		RequestID:   req.RequestID,
		OperationID: operationID,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *Handler) handleClaimNext(w http.ResponseWriter, r *http.Request, operationID string) {
	var req operationActionRequest
	if !decodeRequest(w, r, &req.RequestID, &req) {
		return
	}

	result, err := h.store.ClaimNextTicket(r.Context(), store.OperationActionInput{
		RequestID:   req.RequestID,
		OperationID: operationID,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	resp := claimResponse{Claimed: result.Claimed}
	if result.Claimed {
		h.metrics.IncrClaim("claimed")
		resp.Treatment = &result.Treatment
		resp.Ticket = &result.Ticket
	} else {
		h.metrics.IncrClaim("empty")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTreatmentActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	treatmentID, action, ok := splitAction(r.URL.Path, "/api/treatments/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !isValidUUID(treatmentID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "treatment_id must be a UUID")
		return
	}

	var req treatmentActionRequest
	if !decodeRequest(w, r, &req.RequestID, &req) {
		return
	}
	req.ResolutionType = strings.TrimSpace(req.ResolutionType)

	input := store.TreatmentActionInput{
		RequestID:       req.RequestID,
		TreatmentID:     treatmentID,
		ResolutionType:  req.ResolutionType,
		PauseAfterClose: req.PauseAfterClose,
		OccurredAt:      time.Now().UTC(),
	}

	var tr models.Treatment
	var err error
	switch action {
	case "call-again":
		tr, err = h.store.CallCustomerAgain(r.Context(), input)
	case "finish":
		if req.ResolutionType == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "resolution_type is required")
			return
		}
		if !models.ResolutionTypes[req.ResolutionType] {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "unknown resolution type")
			return
		}
		tr, err = h.store.FinishTreatment(r.Context(), input)
	case "cancel":
		tr, err = h.store.CancelTreatmentAndTicket(r.Context(), input)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *Handler) handleSectors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sectors, err := h.store.ListSectors(r.Context())
		if err != nil {
			status, code, msg := h.mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, sectors)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		sector, err := h.store.CreateSector(r.Context(), req.Name)
		if err != nil {
			status, code, msg := h.mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, sector)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSectorByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sectorID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sectors/"), "/")
	if !isValidUUID(sectorID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id must be a UUID")
		return
	}

	if err := h.store.DeleteSector(r.Context(), sectorID); err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServicePoints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sectorID := strings.TrimSpace(r.URL.Query().Get("sector_id"))
		if sectorID == "" {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id is required")
			return
		}
		if !isValidUUID(sectorID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id must be a UUID")
			return
		}
		points, err := h.store.ListServicePoints(r.Context(), sectorID)
		if err != nil {
			status, code, msg := h.mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, points)
	case http.MethodPost:
		var req struct {
			SectorID          string `json:"sector_id"`
			Name              string `json:"name"`
			PreferredPriority int    `json:"preferred_priority"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.SectorID = strings.TrimSpace(req.SectorID)
		req.Name = strings.TrimSpace(req.Name)
		if req.SectorID == "" || req.Name == "" {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id and name are required")
			return
		}
		if !isValidUUID(req.SectorID) {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "sector_id must be a UUID")
			return
		}
		if req.PreferredPriority != models.PriorityNormal && req.PreferredPriority != models.PriorityPriority {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "preferred_priority must be 0 or 1")
			return
		}
		point, err := h.store.CreateServicePoint(r.Context(), req.SectorID, req.Name, req.PreferredPriority)
		if err != nil {
			status, code, msg := h.mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, point)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		register := strings.TrimSpace(r.URL.Query().Get("register_number"))
		if register == "" {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "register_number is required")
			return
		}
		client, found, err := h.store.GetClientByRegister(r.Context(), register)
		if err != nil {
			status, code, msg := h.mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		if !found {
			writeError(w, "", http.StatusNotFound, "client_not_found", "client not found")
			return
		}
		writeJSON(w, http.StatusOK, client)
	case http.MethodPost:
		var req struct {
			RegisterNumber string `json:"register_number"`
			Name           string `json:"name"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.RegisterNumber = strings.TrimSpace(req.RegisterNumber)
		req.Name = strings.TrimSpace(req.Name)
		if req.RegisterNumber == "" || req.Name == "" {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "register_number and name are required")
			return
		}
		client, err := h.store.CreateClient(r.Context(), req.RegisterNumber, req.Name)
		if err != nil {
			status, code, msg := h.mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, client)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	afterID := strings.TrimSpace(r.URL.Query().Get("after_id"))
	if afterID != "" && !isValidUUID(afterID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "after_id must be a UUID")
		return
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), after, afterID, limit)
	if err != nil {
		status, code, msg := h.mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func splitAction(path, prefix string) (string, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

// decodeRequest decodes an action body and validates the request_id that every
// mutating action must carry.
func decodeRequest(w http.ResponseWriter, r *http.Request, requestID *string, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	*requestID = strings.TrimSpace(*requestID)
	if *requestID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "request_id is required")
		return false
	}
	if !isValidUUID(*requestID) {
		writeError(w, *requestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return false
	}
	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func (h *Handler) mapError(err error) (int, string, string) {
	if errors.Is(err, store.ErrConcurrencyConflict) {
		h.metrics.IncrConflict()
	}
	switch {
	case errors.Is(err, store.ErrSectorNotFound):
		return http.StatusNotFound, "sector_not_found", "sector not found"
	case errors.Is(err, store.ErrServicePointNotFound):
		return http.StatusNotFound, "service_point_not_found", "service point not found"
	case errors.Is(err, store.ErrClientNotFound):
		return http.StatusNotFound, "client_not_found", "client not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrOperationNotFound):
		return http.StatusNotFound, "operation_not_found", "operation not found"
	case errors.Is(err, store.ErrTreatmentNotFound):
		return http.StatusNotFound, "treatment_not_found", "treatment not found"
	case errors.Is(err, store.ErrTicketClosed):
		return http.StatusConflict, "ticket_closed", "ticket already in terminal state"
	case errors.Is(err, store.ErrServicePointBusy):
		return http.StatusConflict, "service_point_busy", "service point already has an active operation"
	case errors.Is(err, store.ErrUserBusy):
		return http.StatusConflict, "user_busy", "user already has an active operation"
	case errors.Is(err, store.ErrOperationNotOperating):
		return http.StatusConflict, "operation_not_operating", "operation is not operating"
	case errors.Is(err, store.ErrOperationNotPaused):
		return http.StatusConflict, "operation_not_paused", "operation is not paused"
	case errors.Is(err, store.ErrOperationFinished):
		return http.StatusConflict, "operation_finished", "operation already finished"
	case errors.Is(err, store.ErrTreatmentOpen):
		return http.StatusConflict, "treatment_in_service", "operation has a treatment in service"
	case errors.Is(err, store.ErrTreatmentClosed):
		return http.StatusConflict, "treatment_closed", "treatment already in terminal state"
	case errors.Is(err, store.ErrDuplicateClient):
		return http.StatusConflict, "duplicate_register_number", "register number already exists"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "state does not allow this action"
	case errors.Is(err, store.ErrRequestIDReused):
		return http.StatusConflict, "request_id_reused", "request_id already used by a different action"
	case errors.Is(err, store.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable, "concurrency_conflict", "concurrent update conflict, try again"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
