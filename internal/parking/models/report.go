package models

import (
	"database/sql"
	"time"
)

// RevenueRow is one closed session in the daily revenue view.
type RevenueRow struct {
	CardID       string    `json:"card_id"`
	VehicleType  string    `json:"vehicle_type"`
	CheckinTime  time.Time `json:"checkin_time"`
	CheckoutTime time.Time `json:"checkout_time"`
	Price        int64     `json:"price"`
}

// TrafficRow is one check-in in the daily traffic view. CheckoutTime is
// null while the vehicle is still parked.
type TrafficRow struct {
	CardID       string       `json:"card_id"`
	VehicleType  string       `json:"vehicle_type"`
	CheckinTime  time.Time    `json:"checkin_time"`
	Status       string       `json:"status"`
	CheckoutTime sql.NullTime `json:"checkout_time"`
}

type DailyReport struct {
	Date    string       `json:"date"` // yyyy-mm-dd business date
	Revenue []RevenueRow `json:"revenue"`
	Total   int64        `json:"total"`
	Traffic []TrafficRow `json:"traffic"`
}
