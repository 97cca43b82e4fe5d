package services

import (
	"errors"
	"fmt"

	"github.com/rentchain/escrow/internal/repositories"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindStateConflict Kind = "state_conflict"
	KindResource      Kind = "resource"
	KindPolicy        Kind = "policy"
	KindNotFound      Kind = "not_found"
	KindUnavailable   Kind = "unavailable"
)

// Error is returned by every engine operation that rejects a request. Two
// errors match under errors.Is when their codes are equal, so callers compare
// against the sentinels below.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return e.Code + ": " + e.Msg
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCounterparty       = &Error{Kind: KindValidation, Code: "invalid_counterparty"}
	ErrInvalidAmount             = &Error{Kind: KindValidation, Code: "invalid_amount"}
	ErrInvalidDueDate            = &Error{Kind: KindValidation, Code: "invalid_due_date"}
	ErrEmptyReference            = &Error{Kind: KindValidation, Code: "empty_reference"}
	ErrEmptyReason               = &Error{Kind: KindValidation, Code: "empty_reason"}
	ErrInvalidMethod             = &Error{Kind: KindValidation, Code: "invalid_method"}
	ErrNotPayer                  = &Error{Kind: KindAuthorization, Code: "not_payer"}
	ErrNotParty                  = &Error{Kind: KindAuthorization, Code: "not_party"}
	ErrUnauthorized              = &Error{Kind: KindAuthorization, Code: "unauthorized"}
	ErrInvalidState              = &Error{Kind: KindStateConflict, Code: "invalid_state"}
	ErrInsufficientAuthorization = &Error{Kind: KindResource, Code: "insufficient_authorization"}
	ErrInsufficientBalance       = &Error{Kind: KindResource, Code: "insufficient_balance"}
	ErrFeeAboveCeiling           = &Error{Kind: KindPolicy, Code: "fee_above_ceiling"}
	ErrNotFound                  = &Error{Kind: KindNotFound, Code: "not_found"}
	ErrPaused                    = &Error{Kind: KindUnavailable, Code: "paused"}
)

// reject returns a copy of base carrying a formatted message.
func reject(base *Error, format string, args ...any) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of an engine error, or "" for anything else
// (storage failures, cancelled contexts).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// translate maps ledger errors onto the engine taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrInsufficientBalance):
		return reject(ErrInsufficientBalance, "%v", err)
	case errors.Is(err, repositories.ErrInsufficientAllowance):
		return reject(ErrInsufficientAuthorization, "%v", err)
	case errors.Is(err, repositories.ErrNotFound):
		return reject(ErrNotFound, "payment not found")
	}
	return err
}
