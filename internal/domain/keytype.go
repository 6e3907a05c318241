package domain

import "time"

// LifetimeDays is the duration used for keys that effectively never expire.
const LifetimeDays = 36500

// KeyType is a license tier in the catalog.
type KeyType struct {
	Name         string   `json:"name" db:"name"`
	DurationDays int      `json:"duration_days" db:"duration_days"`
	Description  string   `json:"description" db:"description"`
	Price        *float64 `json:"price" db:"price"`
	IsAvailable  bool     `json:"is_available" db:"is_available"`
}

// ExpiryFrom returns the expiry of a key of this type whose validity starts at t.
func (kt *KeyType) ExpiryFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, kt.DurationDays)
}

// DefaultKeyTypes is the catalog seeded on startup.
func DefaultKeyTypes() []*KeyType {
	price := func(p float64) *float64 { return &p }
	return []*KeyType{
		{Name: "7day", DurationDays: 7, Description: "7 Day License", Price: price(9.99), IsAvailable: true},
		{Name: "month", DurationDays: 30, Description: "1 Month License", Price: price(29.99), IsAvailable: true},
		{Name: "6month", DurationDays: 180, Description: "6 Month License", Price: price(149.99), IsAvailable: true},
		{Name: "1year", DurationDays: 365, Description: "1 Year License", Price: price(249.99), IsAvailable: true},
		{Name: "lifetime", DurationDays: LifetimeDays, Description: "Lifetime License", Price: price(499.99), IsAvailable: true},
	}
}

// CreateKeyTypeRequest is the request body for adding a catalog entry.
type CreateKeyTypeRequest struct {
	Name         string   `json:"name" validate:"required,keytype"`
	DurationDays int      `json:"duration_days" validate:"required,min=1,max=36500"`
	Description  string   `json:"description" validate:"max=255"`
	Price        *float64 `json:"price" validate:"omitempty,min=0"`
	ClearPrice   bool     `json:"clear_price"`
	IsAvailable  *bool    `json:"is_available"`
}

// UpdateKeyTypeRequest is the request body for changing a catalog entry.
// Nil fields are left unchanged. ClearPrice sets the price back to null.
type UpdateKeyTypeRequest struct {
	DurationDays *int     `json:"duration_days" validate:"omitempty,min=1,max=36500"`
	Description  *string  `json:"description" validate:"omitempty,max=255"`
	Price        *float64 `json:"price" validate:"omitempty,min=0"`
	ClearPrice   bool     `json:"clear_price"`
	IsAvailable  *bool    `json:"is_available"`
}
