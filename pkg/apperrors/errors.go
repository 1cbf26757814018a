package apperrors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyMessage = errors.New("message is empty")
)
