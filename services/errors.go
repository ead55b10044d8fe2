package services

import (
	"context"
	"errors"
	"fmt"
)

// Redemption errors
var (
	ErrEmptyCode       = errors.New("code is empty")
	ErrInvalidCode     = errors.New("code is not valid")
	ErrAlreadyRedeemed = errors.New("code already redeemed")
)

// Prize claim errors
var (
	ErrPrizeNotFound      = errors.New("prize not found")
	ErrAlreadyClaimed     = errors.New("prize already claimed")
	ErrSoldOut            = errors.New("prize is sold out")
	ErrInsufficientPoints = errors.New("not enough points")
	ErrClaimLimitReached  = errors.New("prize claim limit reached")
)

// Catalog and profile errors
var (
	ErrDuplicateID   = errors.New("id already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUserNotFound  = errors.New("user not found")
	ErrCodeNotFound  = errors.New("code not found")
	ErrBadgeNotFound = errors.New("badge not found")
)

// Infrastructure errors
var (
	ErrUnavailable     = errors.New("store unavailable")
	ErrTimeout         = errors.New("store timed out")
	ErrUnauthenticated = errors.New("not authenticated")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrEmptyCode, "EmptyCode"},
	{ErrInvalidCode, "InvalidCode"},
	{ErrAlreadyRedeemed, "AlreadyRedeemed"},
	{ErrPrizeNotFound, "PrizeNotFound"},
	{ErrAlreadyClaimed, "AlreadyClaimed"},
	{ErrSoldOut, "SoldOut"},
	{ErrInsufficientPoints, "InsufficientPoints"},
	{ErrClaimLimitReached, "ClaimLimitReached"},
	{ErrDuplicateID, "DuplicateId"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrUserNotFound, "UserNotFound"},
	{ErrCodeNotFound, "CodeNotFound"},
	{ErrBadgeNotFound, "BadgeNotFound"},
	{ErrTimeout, "Timeout"},
	{ErrUnavailable, "Unavailable"},
	{ErrUnauthenticated, "Unauthenticated"},
}

// Kind returns the stable name of a service error, or "" for unknown errors.
func Kind(err error) string {
	for _, e := range errorKinds {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return ""
}

// classify passes service errors through and folds every other failure
// into ErrTimeout or ErrUnavailable, keeping the cause wrapped.
func classify(err error) error {
	if err == nil || Kind(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
