package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrAlreadyClosed = errors.New("position is already closed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrExchangeError = errors.New("exchange request failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
)
