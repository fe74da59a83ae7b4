package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("object not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyText         = errors.New("no text extracted")
)

// StatusError carries an HTTP-style status code to the query boundary.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// NewStatusError wraps err with code.
func NewStatusError(code int, format string, args ...any) *StatusError {
	return &StatusError{Code: code, Err: fmt.Errorf(format, args...)}
}

// StatusCode extracts the status code of err, defaulting to 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return http.StatusInternalServerError
}
