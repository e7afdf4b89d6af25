package models

import (
	"database/sql"
	"time"
)

const (
	VehicleTypeDay   = "DAY"
	VehicleTypeMonth = "MONTH"

	SessionOpen   = "OPEN"
	SessionClosed = "CLOSED"
)

// Session is one parking visit. At most one OPEN session may exist per
// card_id at any instant; the session store enforces that inside its
// check-in transaction.
type Session struct {
	ID               int64        `json:"id"` // Primary key
	CardID           string       `json:"card_id"`
	VehicleType      string       `json:"vehicle_type"` // 'DAY' or 'MONTH'
	CheckinTime      time.Time    `json:"checkin_time"`
	CheckinFrontRef  string       `json:"checkin_front_ref"`
	CheckinRearRef   string       `json:"checkin_rear_ref"`
	CheckoutTime     sql.NullTime `json:"checkout_time"`
	CheckoutFrontRef string       `json:"checkout_front_ref"`
	CheckoutRearRef  string       `json:"checkout_rear_ref"`
	Price            int64        `json:"price"`
	Status           string       `json:"status"` // 'OPEN' or 'CLOSED'
}
