package domain

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// HoldDuration is how long a claim blocks other shoppers. Fixed policy,
// not configurable per call.
const HoldDuration = 24 * time.Hour

type Reservation struct {
	ID          string
	ProductID   string
	HolderID    string
	HolderName  string
	HolderEmail string
	Status      ReservationStatus
	ReservedAt  time.Time
	ExpiresAt   time.Time
}

func (r *Reservation) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// RemainingLabel renders the time left on a claim for display, e.g. "3h12m".
// Anything under a minute reads "soon to expire".
func RemainingLabel(expiresAt, now time.Time) string {
	left := expiresAt.Sub(now)
	if left < time.Minute {
		return "soon to expire"
	}
	h := int(left.Hours())
	m := int(left.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
