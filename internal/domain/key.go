package domain

import "time"

// ActivationKey is a license token issued to a customer.
// Value, KeyType and CreatedAt never change after insertion.
type ActivationKey struct {
	ID             string     `json:"-" db:"id"`
	Value          string     `json:"key_value" db:"key_value"`
	KeyType        string     `json:"key_type" db:"key_type"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	IsBanned       bool       `json:"is_banned" db:"is_banned"`
	ActivationDate *time.Time `json:"activation_date" db:"activation_date"`
	ExpiryDate     *time.Time `json:"expiry_date" db:"expiry_date"`
	HWID           *string    `json:"hwid" db:"hwid"`
	MachineID      *string    `json:"machine_id" db:"machine_id"`
	Email          *string    `json:"email" db:"email"`
	CustomerName   *string    `json:"customer_name" db:"customer_name"`
	ProductName    *string    `json:"product_name" db:"product_name"`
	Notes          *string    `json:"notes" db:"notes"`
}

// Activated reports whether the key has been redeemed.
func (k *ActivationKey) Activated() bool {
	return k.ActivationDate != nil
}

// Expired reports whether the key's expiry date has passed at now.
// Keys without an expiry date never expire.
func (k *ActivationKey) Expired(now time.Time) bool {
	return k.ExpiryDate != nil && !k.ExpiryDate.After(now)
}

// Valid reports whether the key can be used at now. It is derived on every
// read and never stored.
func (k *ActivationKey) Valid(now time.Time) bool {
	return !k.IsBanned && k.IsActive && !k.Expired(now)
}

// Activation holds the fields written when a key is redeemed.
type Activation struct {
	Date       time.Time
	ExpiryDate *time.Time
	HWID       *string
	MachineID  *string
	Email      *string
}

// KeyView is the public status representation of a key.
type KeyView struct {
	Key            string     `json:"key"`
	Type           string     `json:"type"`
	IsActive       bool       `json:"is_active"`
	IsBanned       bool       `json:"is_banned"`
	ActivationDate *time.Time `json:"activation_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	HWID           *string    `json:"hwid"`
	MachineID      *string    `json:"machine_id"`
	Email          *string    `json:"email"`
	CustomerName   *string    `json:"customer_name"`
	ProductName    *string    `json:"product_name"`
	Notes          *string    `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	IsValid        bool       `json:"is_valid"`
}

// NewKeyView builds the status view of k as of now.
func NewKeyView(k *ActivationKey, now time.Time) *KeyView {
	return &KeyView{
		Key:            k.Value,
		Type:           k.KeyType,
		IsActive:       k.IsActive,
		IsBanned:       k.IsBanned,
		ActivationDate: k.ActivationDate,
		ExpiryDate:     k.ExpiryDate,
		HWID:           k.HWID,
		MachineID:      k.MachineID,
		Email:          k.Email,
		CustomerName:   k.CustomerName,
		ProductName:    k.ProductName,
		Notes:          k.Notes,
		CreatedAt:      k.CreatedAt,
		IsValid:        k.Valid(now),
	}
}

// KeyFilter narrows a key listing. Nil fields are not applied; all set
// fields must match.
type KeyFilter struct {
	KeyType      *string
	IsActive     *bool
	IsBanned     *bool
	CustomerName *string // substring
	ProductName  *string // substring
	Email        *string // substring
}

// KeyPage is one page of a filtered key listing.
type KeyPage struct {
	Keys       []*ActivationKey `json:"keys"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

// GenerateKeysRequest is the request body for bulk key generation.
// Count is accepted as a JSON number or a numeric string.
type GenerateKeysRequest struct {
	Prefix       string  `json:"prefix"`
	KeyType      string  `json:"key_type"`
	Count        any     `json:"count"`
	CustomerName *string `json:"customer_name"`
	ProductName  *string `json:"product_name"`
	Notes        *string `json:"notes"`
}

// GenerateKeysResponse is returned after bulk key generation.
type GenerateKeysResponse struct {
	Count        int      `json:"count"`
	Requested    int      `json:"requested"`
	Keys         []string `json:"keys"`
	KeyType      string   `json:"key_type"`
	CustomerName *string  `json:"customer_name"`
	ProductName  *string  `json:"product_name"`
}

// ActivateRequest is the public activation request body.
type ActivateRequest struct {
	Key       string  `json:"key"`
	HWID      *string `json:"hwid"`
	MachineID *string `json:"machine_id"`
	Email     *string `json:"email"`
}
