package domain

import "time"

// UnknownBucket labels keys with no customer or product name in rollups.
const UnknownBucket = "Unknown"

// CustomerSummary aggregates keys issued to one customer.
type CustomerSummary struct {
	Name          string `json:"name" db:"name"`
	Email         string `json:"email" db:"-"`
	TotalKeys     int    `json:"total_keys" db:"total_keys"`
	ActiveKeys    int    `json:"active_keys" db:"active_keys"`
	ActivatedKeys int    `json:"activated_keys" db:"activated_keys"`
}

// ProductSummary aggregates keys issued for one product.
type ProductSummary struct {
	Name          string   `json:"name" db:"name"`
	TotalKeys     int      `json:"total_keys" db:"total_keys"`
	ActiveKeys    int      `json:"active_keys" db:"active_keys"`
	ActivatedKeys int      `json:"activated_keys" db:"activated_keys"`
	KeyTypes      []string `json:"key_types" db:"-"`
}

// Stats is the system-wide key summary.
type Stats struct {
	TotalKeys     int            `json:"total_keys"`
	ActiveKeys    int            `json:"active_keys"`
	BannedKeys    int            `json:"banned_keys"`
	ActivatedKeys int            `json:"activated_keys"`
	ExpiredKeys   int            `json:"expired_keys"`
	KeyTypes      map[string]int `json:"key_types"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Store     string    `json:"store"`
	Timestamp time.Time `json:"timestamp"`
}
