package models

const (
	DefaultCancellationCutoffMinutes = 5
	DefaultPaidVisibilityMinutes     = 10
)

// Config holds the admin tunables for order windows.
type Config struct {
	CancellationCutoffMinutes int `json:"cancellation_cutoff_minutes" bson:"cancellation_cutoff_minutes"`
	PaidVisibilityMinutes     int `json:"paid_visibility_minutes" bson:"paid_visibility_minutes"`
}

func DefaultConfig() Config {
	return Config{
		CancellationCutoffMinutes: DefaultCancellationCutoffMinutes,
		PaidVisibilityMinutes:     DefaultPaidVisibilityMinutes,
	}
}
