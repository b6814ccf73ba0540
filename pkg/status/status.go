// Package status models the provider's item status taxonomy: the five
// coarse item states and the mapping from fine-grained execution statuses.
package status

import "log/slog"

// ItemStatus is the coarse, user-facing state of a connection item.
type ItemStatus string

const (
	// Updating means a sync is in progress; no action is required.
	Updating ItemStatus = "UPDATING"
	// LoginError means the sync failed and new credential parameters are
	// required before the provider will sync again.
	LoginError ItemStatus = "LOGIN_ERROR"
	// Outdated means the last execution failed but the parameters were
	// valid; the sync can be retried with the existing credentials.
	Outdated ItemStatus = "OUTDATED"
	// WaitingUserInput means the provider needs user input (MFA/OAuth)
	// to continue the sync.
	WaitingUserInput ItemStatus = "WAITING_USER_INPUT"
	// Updated means the sync finished successfully and all data is
	// available to collect.
	Updated ItemStatus = "UPDATED"
)

// ExecutionStatus is the fine-grained sync sub-state reported by the
// provider on each item fetch.
type ExecutionStatus string

// mapping associates a coarse status with the execution statuses that
// produce it, in the provider's documented order. ACCOUNT_LOCKED and
// ACCOUNT_CREDENTIALS_RESET appear under both LOGIN_ERROR and OUTDATED in
// the provider's documentation; lookups return the first match, so
// LOGIN_ERROR wins for those two.
type mapping struct {
	status     ItemStatus
	executions []ExecutionStatus
}

var executionTable = []mapping{
	{Updating, []ExecutionStatus{
		"CREATED",
		"LOGIN_IN_PROGRESS",
		"LOGIN_MFA_IN_PROGRESS",
		"ACCOUNTS_IN_PROGRESS",
		"CREDITCARDS_IN_PROGRESS",
		"TRANSACTIONS_IN_PROGRESS",
		"INVESTMENTS_IN_PROGRESS",
		"IDENTITY_IN_PROGRESS",
	}},
	{WaitingUserInput, []ExecutionStatus{
		"WAITING_USER_INPUT",
	}},
	{LoginError, []ExecutionStatus{
		"INVALID_CREDENTIALS",
		"ACCOUNT_LOCKED",
		"USER_AUTHORIZATION_NOT_GRANTED",
		"ACCOUNT_CREDENTIALS_RESET",
	}},
	{Outdated, []ExecutionStatus{
		"SITE_NOT_AVAILABLE",
		"INVALID_CREDENTIALS_MFA",
		"ALREADY_LOGGED_IN",
		"ACCOUNT_LOCKED",
		"ACCOUNT_NEEDS_ACTION",
		"ERROR",
		"CONNECTION_ERROR",
		"USER_AUTHORIZATION_PENDING",
		"USER_INPUT_TIMEOUT",
		"USER_NOT_SUPPORTED",
		"ACCOUNT_CREDENTIALS_RESET",
	}},
	{Updated, []ExecutionStatus{
		"SUCCESS",
		"PARTIAL_SUCCESS",
	}},
}

// FromExecution maps an execution status to its coarse item status.
// Execution statuses the table does not know are logged and treated as
// UPDATING so callers keep polling instead of crashing on a taxonomy gap.
func FromExecution(exec ExecutionStatus, logger *slog.Logger) ItemStatus {
	if logger == nil {
		logger = slog.Default()
	}

	for _, m := range executionTable {
		for _, e := range m.executions {
			if e == exec {
				return m.status
			}
		}
	}

	logger.Warn("unmapped execution status, treating as UPDATING", "execution_status", string(exec))
	return Updating
}

// Known reports whether s is one of the five coarse statuses.
func Known(s ItemStatus) bool {
	switch s {
	case Updating, LoginError, Outdated, WaitingUserInput, Updated:
		return true
	}
	return false
}

// Terminal reports whether s ends the polling loop on its own: UPDATED is
// terminal success. LOGIN_ERROR and OUTDATED are recoverable through an
// item update and are not terminal here.
func Terminal(s ItemStatus) bool {
	return s == Updated
}
