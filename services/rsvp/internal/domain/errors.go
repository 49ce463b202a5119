package domain

import "errors"

// Expected outcomes of the access engine. Callers match them with errors.Is;
// none of them is retried.
var (
	ErrNotFound            = errors.New("not found")
	ErrNotPublished        = errors.New("invitation is not published")
	ErrDisabled            = errors.New("link is disabled")
	ErrExpired             = errors.New("link has expired")
	ErrAlreadyUsed         = errors.New("token already used")
	ErrQuotaExhausted      = errors.New("guest quota exhausted")
	ErrPartySizeNotAllowed = errors.New("party size not allowed for this guest")
	ErrNoExistingResponse  = errors.New("no existing response")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
