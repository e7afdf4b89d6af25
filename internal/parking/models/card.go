package models

import "time"

// Card is a registered month-pass credential. Cards are created or
// reactivated by bulk import and never deleted automatically.
type Card struct {
	CardID       string    `json:"card_id"` // Primary key
	PlateNumber  string    `json:"plate_number"`
	CustomerName string    `json:"customer_name"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}
