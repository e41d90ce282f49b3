// Package handlers serves the local admin API over the sync engine and the
// workout logbook.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/accounts"
	"fitlog-go/internal/clients"
	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/logbook"
	"fitlog-go/pkg/types"
)

func statusFor(err error) int {
	var merr *cloudsync.MigrationError
	var rerr *cloudsync.RestoreError
	var reqErr *clients.RequestError
	switch {
	case errors.Is(err, cloudsync.ErrNotConfigured), errors.Is(err, cloudsync.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, cloudsync.ErrNoAccount), errors.Is(err, accounts.ErrNoAccount):
		return http.StatusPreconditionFailed
	case errors.Is(err, cloudsync.ErrAccountExists), errors.Is(err, accounts.ErrExists),
		errors.Is(err, logbook.ErrSessionCompleted):
		return http.StatusConflict
	case errors.Is(err, cloudsync.ErrRecoveryNotFound), errors.Is(err, logbook.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, logbook.ErrInvalidInput), errors.Is(err, accounts.ErrInvalidName):
		return http.StatusBadRequest
	case errors.As(err, &merr), errors.As(err, &rerr), errors.As(err, &reqErr),
		errors.Is(err, clients.ErrUnauthorized):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), types.ErrorBody{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, types.ErrorBody{Error: msg})
}
