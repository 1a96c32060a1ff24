package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("capability not granted")
	ErrCapacity      = errors.New("pending request table full")
	ErrMissingFields = errors.New("missing required fields")
	ErrNotConnected  = errors.New("upstream not connected")
)
