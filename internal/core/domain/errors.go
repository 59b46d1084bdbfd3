package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory reports that a feature row could not be built
	// because a lag or rolling input is missing from the window.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrEmptyTrainingSet reports that too few training rows exist to fit a model.
	ErrEmptyTrainingSet = errors.New("empty training set")

	// ErrModelNotFitted reports a prediction attempted before fitting.
	ErrModelNotFitted = errors.New("model not fitted")

	// ErrInvalidHorizon reports a forecast length outside [1, MaxHorizonDays].
	ErrInvalidHorizon = errors.New("invalid forecast horizon")

	// ErrHistoricalSourceUnavailable reports a failure of the historical data provider.
	ErrHistoricalSourceUnavailable = errors.New("historical source unavailable")
)

// Error codes carried by WeatherError.
const (
	CodeInvalidCoordinates     = "INVALID_COORDINATES"
	CodeInvalidHorizon         = "INVALID_HORIZON"
	CodeForecastRetrievalError = "FORECAST_RETRIEVAL_ERROR"
	CodeHistoryUnavailable     = "HISTORY_UNAVAILABLE"
	CodeForecastFailed         = "FORECAST_FAILED"
)

// WeatherError represents domain-specific errors that can occur during weather operations.
// It provides structured error information with error codes and optional underlying causes.
type WeatherError struct {
	// Code identifies the type of error for programmatic handling
	Code string

	// Message provides a human-readable error description
	Message string

	// Cause wraps an underlying error if applicable
	Cause error
}

// Error implements the error interface for WeatherError.
func (e *WeatherError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *WeatherError) Unwrap() error {
	return e.Cause
}
