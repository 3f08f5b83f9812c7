package service

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrSelfChat        = errors.New("cannot chat about your own product")
	ErrInvalidArgument = errors.New("invalid argument")
)
