package service_test

import (
	"testing"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/service"
)

func ts(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDateBoundaryPolicy(t *testing.T) {
	fee := service.DateBoundaryPolicy(3000, 5000)

	cases := []struct {
		name        string
		vehicleType string
		checkin     string
		checkout    string
		want        int64
	}{
		{"month pass is free", models.VehicleTypeMonth, "2024-01-10 08:00", "2024-01-10 20:00", 0},
		{"month pass free across nights", models.VehicleTypeMonth, "2024-01-10 08:00", "2024-01-15 20:00", 0},
		{"same day flat rate", models.VehicleTypeDay, "2024-01-10 08:00", "2024-01-10 20:00", 3000},
		{"fifteen minutes across midnight is one night", models.VehicleTypeDay, "2024-01-10 23:50", "2024-01-11 00:05", 5000},
		{"three nights", models.VehicleTypeDay, "2024-01-10 22:00", "2024-01-13 07:00", 15000},
		{"month boundary", models.VehicleTypeDay, "2024-01-31 23:00", "2024-02-01 01:00", 5000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := fee(ts(tc.checkin), tc.vehicleType, ts(tc.checkout))
			if got != tc.want {
				t.Errorf("fee(%s, %s, %s) = %d, want %d",
					tc.checkin, tc.vehicleType, tc.checkout, got, tc.want)
			}
		})
	}
}

func TestFlatRatePolicy(t *testing.T) {
	fee := service.FlatRatePolicy(3000)

	if got := fee(ts("2024-01-10 08:00"), models.VehicleTypeDay, ts("2024-01-15 20:00")); got != 3000 {
		t.Errorf("flat rate over five nights = %d, want 3000", got)
	}
	if got := fee(ts("2024-01-10 08:00"), models.VehicleTypeMonth, ts("2024-01-10 09:00")); got != 0 {
		t.Errorf("flat rate for month pass = %d, want 0", got)
	}
}
