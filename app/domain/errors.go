package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidRequest = errors.New("invalid request")
	ErrValidation     = errors.New("validation error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal server error")

	ErrActivityNotFound       = errors.New("activity not found")
	ErrActivityNotActive      = errors.New("activity not active")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrAlreadyReserved        = errors.New("already reserved")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
