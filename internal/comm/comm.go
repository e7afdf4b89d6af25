package comm

import (
	"encoding/json"
	"time"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "lane-event", "trigger", "payment-ack"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

type ScanEvent struct {
	Lane      string    `json:"lane"` // "ENTRY" or "EXIT"
	CardID    string    `json:"card_id"`
	ScannedAt time.Time `json:"scanned_at"`
}

// TriggerCommand is a manual capture request from the operator console.
// CardID carries the synthetic code typed by the operator; empty means
// the lane's last scanned card is unknown and the event is rejected.
type TriggerCommand struct {
	Lane   string `json:"lane"`
	CardID string `json:"card_id"`
}

type PaymentAck struct {
	Lane string `json:"lane"`
	TxID string `json:"tx_id"`
}

// LaneEvent is the operator-facing outcome of one transaction.
type LaneEvent struct {
	TxID            string    `json:"tx_id"`
	Lane            string    `json:"lane"`
	CardID          string    `json:"card_id"`
	Ok              bool      `json:"ok"`
	VehicleType     string    `json:"vehicle_type,omitempty"`
	Price           int64     `json:"price"`
	CheckinTime     time.Time `json:"checkin_time,omitempty"`
	FrontRef        string    `json:"front_ref,omitempty"`
	RearRef         string    `json:"rear_ref,omitempty"`
	Message         string    `json:"message"`
	Beep            bool      `json:"beep"`
	AwaitingPayment bool      `json:"awaiting_payment"`
	At              time.Time `json:"at"`
}

type LaneStatus struct {
	Lane        string `json:"lane"`
	FrontCamera string `json:"front_camera"`
	RearCamera  string `json:"rear_camera"`
	Scanner     string `json:"scanner"`
}

type ImportResult struct {
	Imported int `json:"imported"`
}
