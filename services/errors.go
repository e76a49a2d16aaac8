package services

import "errors"

// Every ledger error is recoverable and meant to be shown to the caller.
var (
	ErrDuplicateUsername     = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrMissingField          = errors.New("required field is missing")
	ErrCredentialTooLong     = errors.New("password must be at most 72 bytes")
	ErrReservedUsername      = errors.New("username is reserved")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrMissingAddress        = errors.New("withdrawal address is required")
	ErrReferralNotFound      = errors.New("referred user not found")
	ErrSelfReferral          = errors.New("you cannot refer yourself")
	ErrDuplicateReferral     = errors.New("referral already added")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrTransactionNotPending = errors.New("transaction is not pending")
	ErrAccountNotFound       = errors.New("account not found")
	ErrSessionInvalid        = errors.New("session is invalid or expired")
)
