package service

import (
	"os"
	"strconv"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

const (
	DefaultSameDayRate   = 3000
	DefaultOvernightRate = 5000
)

// DateBoundaryPolicy prices day-pass stays by calendar-date difference,
// not elapsed duration: a stay that crosses midnight counts as one
// night even if only minutes elapsed. Month-pass vehicles park free.
func DateBoundaryPolicy(sameDayRate, overnightRate int64) store.FeeFunc {
	return func(checkin time.Time, vehicleType string, checkout time.Time) int64 {
		if vehicleType == models.VehicleTypeMonth {
			return 0
		}

		nights := calendarDays(checkout) - calendarDays(checkin)
		if nights <= 0 {
			return sameDayRate
		}
		return overnightRate * int64(nights)
	}
}

// FlatRatePolicy charges every day-pass stay the same amount regardless
// of duration. Legacy behaviour of the first storage backend, kept
// selectable until the business settles on one rule.
func FlatRatePolicy(rate int64) store.FeeFunc {
	return func(checkin time.Time, vehicleType string, checkout time.Time) int64 {
		if vehicleType == models.VehicleTypeMonth {
			return 0
		}
		return rate
	}
}

// PolicyFromEnv builds the fee policy from FEE_POLICY, FEE_SAME_DAY and
// FEE_OVERNIGHT. Unset or unknown values fall back to the date-boundary
// rule with the default rates.
func PolicyFromEnv() store.FeeFunc {
	sameDay := envInt64("FEE_SAME_DAY", DefaultSameDayRate)
	overnight := envInt64("FEE_OVERNIGHT", DefaultOvernightRate)

	if os.Getenv("FEE_POLICY") == "flat" {
		return FlatRatePolicy(sameDay)
	}
	return DateBoundaryPolicy(sameDay, overnight)
}

// calendarDays counts whole days since the epoch in t's location, so
// subtracting two values gives the number of date boundaries crossed.
func calendarDays(t time.Time) int {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix() / 86400)
}

func envInt64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
