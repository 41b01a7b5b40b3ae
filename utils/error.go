package utils

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy for the ledger core. None of these retry automatically;
// each carries enough detail (ids, amounts, limits) for the caller to
// correct its input. Match with errors.As.

// ValidationError reports rejected input: unbalanced postings, duplicate
// references, missing required associations.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidationError(field string, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a dangling reference.
type NotFoundError struct {
	Entity string
	Id     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Id)
}

func NewNotFoundError(entity string, id int) error {
	return &NotFoundError{Entity: entity, Id: id}
}

// OverApplicationError reports an allocation exceeding the remaining
// capacity of an obligation.
type OverApplicationError struct {
	InvoiceId int
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverApplicationError) Error() string {
	return fmt.Sprintf("cannot apply %s to transaction %d: only %s remaining",
		e.Requested.StringFixed(2), e.InvoiceId, e.Remaining.StringFixed(2))
}

// DependencyError reports an attempt to delete a row whose lifecycle is
// owned by another transaction.
type DependencyError struct {
	Entity  string
	Id      int
	OwnerId int
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %d is owned by transaction %d; delete the owner instead", e.Entity, e.Id, e.OwnerId)
}

// ConfigurationError reports a missing required chart-of-accounts entry.
type ConfigurationError struct {
	SystemCode string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("chart of accounts has no %s account configured", e.SystemCode)
}
