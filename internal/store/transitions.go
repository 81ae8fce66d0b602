package store

import (
	"math"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
)

var ticketTransitions = map[string][]string{
	"claim":  {models.TicketPending},
	"cancel": {models.TicketPending, models.TicketInAttendance},
	"finish": {models.TicketInAttendance},
}

var operationTransitions = map[string][]string{
	"pause":      {models.OperationOperating},
	"resume":     {models.OperationPaused},
	"end":        {models.OperationOperating, models.OperationPaused},
	"claim-next": {models.OperationOperating},
}

var treatmentTransitions = map[string][]string{
	"call-again": {models.TreatmentInService},
	"finish":     {models.TreatmentInService},
	"cancel":     {models.TreatmentInService},
}

func ValidTicketTransition(action, fromStatus string) bool {
	return allowed(ticketTransitions, action, fromStatus)
}

func ValidOperationTransition(action, fromStatus string) bool {
	return allowed(operationTransitions, action, fromStatus)
}

func ValidTreatmentTransition(action, fromStatus string) bool {
	return allowed(treatmentTransitions, action, fromStatus)
}

func allowed(table map[string][]string, action, fromStatus string) bool {
	states, ok := table[action]
	if !ok {
		return false
	}
	for _, status := range states {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// DurationMinutes reports the elapsed time between two instants rounded to
// whole minutes, with a floor of 1 so that closed intervals never report zero.
func DurationMinutes(from, to time.Time) int {
	minutes := int(math.Round(to.Sub(from).Minutes()))
	if minutes <= 0 {
		return 1
	}
	return minutes
}
