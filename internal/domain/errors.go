package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrStore         = errors.New("store error")
)

// Key lifecycle errors. Each also matches its broader category with errors.Is,
// so ErrKeyBanned is an ErrConflict and ErrKeyNotFound is an ErrNotFound.
var (
	ErrKeyNotFound      error = &categoryError{msg: "key not found", category: ErrNotFound}
	ErrKeyTypeNotFound  error = &categoryError{msg: "key type not found", category: ErrNotFound}
	ErrAdminNotFound    error = &categoryError{msg: "admin not found", category: ErrNotFound}
	ErrKeyBanned        error = &categoryError{msg: "key is banned", category: ErrConflict}
	ErrAlreadyActivated error = &categoryError{msg: "key already activated", category: ErrConflict}
)

// Messages returned to API clients. Existing clients match on these strings.
const (
	MsgUnauthorized        = "Unauthorized"
	MsgSuperadminRequired  = "Superadmin privileges required"
	MsgKeyNotFound         = "Key not found"
	MsgKeyBanned           = "Key is banned"
	MsgKeyAlreadyActivated = "Key already activated"
	MsgKeyActivated        = "Key activated successfully"
	MsgKeyRequired         = "Key is required"
	MsgKeyBannedOK         = "Key banned successfully"
	MsgKeyUnbannedOK       = "Key unbanned successfully"
	MsgCountNotInteger     = "Count must be a valid integer"
	MsgBatchTooLarge       = "Cannot generate more than 1000 keys at once"
	MsgInvalidBody         = "Invalid request body"
	MsgInvalidCredentials  = "Invalid username or password"
	MsgInternalError       = "Internal server error"
)

type categoryError struct {
	msg      string
	category error
}

func (e *categoryError) Error() string { return e.msg }

// Is reports whether target is the error's category.
func (e *categoryError) Is(target error) bool { return target == e.category }
