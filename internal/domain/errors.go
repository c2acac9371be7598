package domain

import (
	"fmt"
	"time"
)

// ConnectionError is returned when the relational store stays unreachable
// after the retry budget is exhausted.
type ConnectionError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store unreachable after %d attempts (%s): %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// TrendComputationError wraps any failure inside the market trend engine.
type TrendComputationError struct {
	City     string
	Category string
	Err      error
}

func (e *TrendComputationError) Error() string {
	return fmt.Sprintf("compute trend %s/%s: %v", e.City, e.Category, e.Err)
}

func (e *TrendComputationError) Unwrap() error { return e.Err }

// ReportError wraps any failure inside the comparable report engine.
type ReportError struct {
	ListingID int64
	Err       error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("generate report for listing %d: %v", e.ListingID, e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }

// PersistenceError is returned when an upsert fails. The row is left untouched.
type PersistenceError struct {
	Key TrendKey
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("upsert trend %s/%s/%s [%s..%s]: %v",
		e.Key.City, e.Key.State, e.Key.Category,
		e.Key.PeriodStart.Format(time.DateOnly), e.Key.PeriodEnd.Format(time.DateOnly), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
