package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks the urgency of an incident.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority accepts any casing; an empty value defaults to MEDIUM.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	case "":
		return PriorityMedium, nil
	default:
		return "", Validation(fmt.Sprintf("unknown priority %q", s))
	}
}

// IncidentStatus tracks an incident through the response lifecycle.
type IncidentStatus string

const (
	IncidentPending            IncidentStatus = "pending"
	IncidentDispatched         IncidentStatus = "dispatched"
	IncidentArrivedAtEmergency IncidentStatus = "arrived_at_emergency"
	IncidentTransporting       IncidentStatus = "transporting"
	IncidentArrivedAtHospital  IncidentStatus = "arrived_at_hospital"
	IncidentResolved           IncidentStatus = "resolved"
)

var incidentOrder = map[IncidentStatus]int{
	IncidentPending:            0,
	IncidentDispatched:         1,
	IncidentArrivedAtEmergency: 2,
	IncidentTransporting:       3,
	IncidentArrivedAtHospital:  4,
	IncidentResolved:           5,
}

// Rank returns the position of s in the lifecycle, or -1 if s is unknown.
func (s IncidentStatus) Rank() int {
	r, ok := incidentOrder[s]
	if !ok {
		return -1
	}
	return r
}

// Active is true while a vehicle is working the incident.
func (s IncidentStatus) Active() bool {
	return s != IncidentPending && s != IncidentResolved && s.Rank() > 0
}

// Incident is a reported emergency.
type Incident struct {
	ID              string         `json:"id"`
	PatientName     string         `json:"patient_name,omitempty"`
	ContactNumber   string         `json:"contact_number,omitempty"`
	Description     string         `json:"description,omitempty"`
	Location        Point          `json:"location"`
	Priority        Priority       `json:"priority"`
	Category        string         `json:"category"`
	Status          IncidentStatus `json:"status"`
	AssignedVehicle string         `json:"assigned_vehicle,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
