package store

// Health is the categorical vine health state derived from NDVI.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthStressed Health = "stressed"
	HealthAlert    Health = "alert"
)

// NDVI thresholds for the health states.
const (
	HealthyAbove  = 0.5
	StressedAbove = 0.2
)

// HealthOf derives the health state from an NDVI value.
func HealthOf(ndvi float64) Health {
	switch {
	case ndvi > HealthyAbove:
		return HealthHealthy
	case ndvi > StressedAbove:
		return HealthStressed
	default:
		return HealthAlert
	}
}
