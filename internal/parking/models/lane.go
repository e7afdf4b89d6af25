package models

// LaneRole decides which ledger operation a lane's trigger runs.
type LaneRole string

const (
	LaneEntry LaneRole = "ENTRY"
	LaneExit  LaneRole = "EXIT"
)

const (
	CameraFront = "front"
	CameraRear  = "rear"
)

// Lane identity is a configuration fact: a fixed role plus the
// addresses of its two cameras and serial reader.
type Lane struct {
	Role       LaneRole `json:"role"`
	FrontURL   string   `json:"front_url"`
	RearURL    string   `json:"rear_url"`
	SerialPort string   `json:"serial_port"`
	BaudRate   int      `json:"baud_rate"`
}

func (r LaneRole) Valid() bool {
	return r == LaneEntry || r == LaneExit
}
