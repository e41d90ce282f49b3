package cloudsync

import (
	"errors"
	"fmt"

	"fitlog-go/internal/store"
)

var (
	ErrNotConfigured    = errors.New("cloudsync: remote not configured")
	ErrOffline          = errors.New("cloudsync: offline")
	ErrNoAccount        = errors.New("cloudsync: no local account")
	ErrAccountExists    = errors.New("cloudsync: a local account already exists")
	ErrRecoveryNotFound = errors.New("no such profile or wrong PIN")
	ErrParentNotSynced  = errors.New("cloudsync: parent session has no remote id yet")
)

// ItemError is a single outbox item's delivery failure. It is recorded on the
// item and never aborts a drain.
type ItemError struct {
	ItemID int64
	Table  store.Table
	Action store.Action
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s #%d: %v", e.Action, e.Table, e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// MigrationError aborts a bootstrap migration. Rows uploaded before Step
// stay on the remote.
type MigrationError struct {
	Step string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration aborted at %s: %v", e.Step, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// RestoreError aborts a restore. Local rows written before Step stay.
type RestoreError struct {
	Step string
	Err  error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore aborted at %s: %v", e.Step, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }
