package models

import "time"

type Sector struct {
	SectorID  string    `json:"sector_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ServicePoint is a counter inside a sector. Availability is denormalized from
// the state of its current operation and only ever written inside the same
// transaction that moves the operation.
type ServicePoint struct {
	ServicePointID    string `json:"service_point_id"`
	SectorID          string `json:"sector_id"`
	Name              string `json:"name"`
	Availability      string `json:"availability"`
	PreferredPriority int    `json:"preferred_priority"`
}

type Client struct {
	ClientID       string    `json:"client_id"`
	RegisterNumber string    `json:"register_number"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

type Ticket struct {
	TicketID  string    `json:"ticket_id"`
	SectorID  string    `json:"sector_id"`
	ClientID  string    `json:"client_id"`
	Priority  int       `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	RequestID string    `json:"request_id,omitempty"`
}

type Operation struct {
	OperationID    string    `json:"operation_id"`
	ServicePointID string    `json:"service_point_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Pause struct {
	PauseID         string    `json:"pause_id"`
	OperationID     string    `json:"operation_id"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Treatment struct {
	TreatmentID     string     `json:"treatment_id"`
	TicketID        string     `json:"ticket_id"`
	OperationID     string     `json:"operation_id"`
	Status          string     `json:"status"`
	ResolutionType  *string    `json:"resolution_type,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CalledAgainAt   *time.Time `json:"called_again_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	TicketPending      = "pending"
	TicketInAttendance = "in-attendance"
	TicketFinished     = "finished"
	TicketCanceled     = "canceled"
)

const (
	OperationOperating = "operating"
	OperationPaused    = "paused"
	OperationFinished  = "finished"
)

const (
	PauseInProgress = "in-progress"
	PauseFinished   = "finished"
	PauseCancelled  = "cancelled"
)

const (
	TreatmentInService = "in_service"
	TreatmentFinished  = "finished"
	TreatmentCancelled = "cancelled"
)

const (
	AvailabilityFree      = "free"
	AvailabilityOperating = "operating"
	AvailabilityPaused    = "paused"
)

const (
	PriorityNormal   = 0
	PriorityPriority = 1
)

// ReasonFinishedService is issued by the system right after a treatment closes;
// it is the only pause reason allowed while the closing treatment's bookkeeping
// is still settling.
const ReasonFinishedService = "finished-service"

var PauseReasons = map[string]bool{
	"lunch":               true,
	"break":               true,
	"meeting":             true,
	"personal":            true,
	"technical":           true,
	ReasonFinishedService: true,
	"other":               true,
}

var ResolutionTypes = map[string]bool{
	"complaint":    true,
	"denunciation": true,
	"consultation": true,
}
