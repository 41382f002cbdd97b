package model

import "errors"

var (
	ErrInvalidDuration    = errors.New("elapsed time must be positive")
	ErrInvalidMode        = errors.New("unknown accuracy mode")
	ErrEmptyReference     = errors.New("reference text is empty")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnknownOwner       = errors.New("result owner does not exist")
	ErrUserNotFound       = errors.New("user not found")
)
