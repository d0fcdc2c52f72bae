package profile

import "errors"

var (
	ErrNotFound     = errors.New("profile not found")
	ErrInvalidInput = errors.New("invalid profile input")
	ErrForbidden    = errors.New("cannot edit another user's profile")
)
