package session

import (
	"errors"
	"fmt"
)

// ErrUsage marks bad caller input: a missing account id, a connector
// selector with neither id nor name, and the like. Never retried.
var ErrUsage = errors.New("usage error")

// NotFoundError is a connector or account lookup miss.
type NotFoundError struct {
	Selector string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Selector)
}

// MissingCredentialError means a connector requires a credential field the
// caller did not supply.
type MissingCredentialError struct {
	Field string
}

func (e *MissingCredentialError) Error() string {
	return "missing credential: " + e.Field
}

// InvalidCredentialError means a supplied credential value failed the
// connector's validation pattern.
type InvalidCredentialError struct {
	Field string
}

func (e *InvalidCredentialError) Error() string {
	return "invalid credential: " + e.Field
}
