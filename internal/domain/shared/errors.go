// Package shared holds the types every domain package agrees on: error
// kinds, domain events and small value objects. It imports nothing outside
// the standard library.
package shared

import (
	"errors"
	"fmt"
	"slices"
)

// ═══════════════════════════════════════════════════════════════════════════
// ERROR KINDS
// ═══════════════════════════════════════════════════════════════════════════

// Базовые виды ошибок. Проверяются через errors.Is.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Ошибка в правилах (каталог достижений, вехи). Фатальна при старте.
	ErrConfiguration = errors.New("configuration error")

	ErrAlreadyProcessed = errors.New("already processed")

	// Проигранная гонка compare-and-swap; команду можно повторить.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError attaches where an error happened (Domain.Op) and what kind it
// is to a message and an optional cause. errors.Is matches both Kind and Err.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	prefix := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

// Unwrap prefers the cause so errors.As reaches into it.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ═══════════════════════════════════════════════════════════════════════════
// SENTINELS
// ═══════════════════════════════════════════════════════════════════════════

// Прогресс: начисление опыта и обработка событий.
var (
	ErrInvalidAward             = NewDomainError("progress", "Award", ErrNegativeValue, "experience award cannot be negative")
	ErrInvalidActivity          = NewDomainError("progress", "ValidateActivity", ErrValidation, "invalid activity event")
	ErrActivityAlreadyProcessed = NewDomainError("progress", "ProcessActivity", ErrAlreadyProcessed, "activity already processed")
	ErrInvalidTrigger           = NewDomainError("progress", "ProcessTrigger", ErrInvalidInput, "invalid trigger event")
)

// Правила: загрузка каталога достижений и набора вех.
var (
	ErrUnknownRequirement     = NewDomainError("rules", "ParseRequirement", ErrConfiguration, "unknown requirement kind")
	ErrMalformedRequirement   = NewDomainError("rules", "ParseRequirement", ErrInvalidFormat, "malformed requirement string")
	ErrDuplicateAchievementID = NewDomainError("rules", "Validate", ErrAlreadyExists, "duplicate achievement id")
	ErrInvalidDefinition      = NewDomainError("rules", "Validate", ErrConfiguration, "invalid rule definition")
)

// Хранилище профилей.
var (
	ErrProfileNotFound      = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrProfileAlreadyExists = NewDomainError("profile", "Create", ErrAlreadyExists, "profile already exists")
	ErrProfileVersionStale  = NewDomainError("profile", "Save", ErrConcurrentModification, "profile snapshot version is stale")
)

// ═══════════════════════════════════════════════════════════════════════════
// CLASSIFIERS
// ═══════════════════════════════════════════════════════════════════════════

var (
	validationKinds = []error{
		ErrValidation, ErrInvalidID, ErrInvalidInput,
		ErrEmptyValue, ErrNegativeValue, ErrValueOutOfRange,
	}
	configurationKinds = []error{
		ErrConfiguration, ErrUnknownRequirement, ErrMalformedRequirement,
		ErrDuplicateAchievementID, ErrInvalidDefinition,
	}
)

func isAny(err error, kinds []error) bool {
	return err != nil && slices.ContainsFunc(kinds, func(k error) bool { return errors.Is(err, k) })
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation reports bad caller input.
func IsValidation(err error) bool { return isAny(err, validationKinds) }

// IsConfiguration reports a broken rule set.
func IsConfiguration(err error) bool { return isAny(err, configurationKinds) }

// IsRetryable reports a lost compare-and-swap. Nothing else is safe to
// repeat: a command either commits whole or not at all.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }
