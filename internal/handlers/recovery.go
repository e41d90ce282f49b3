package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/cloudsync"
	"fitlog-go/pkg/types"
)

func VerifyRecovery(rec *cloudsync.Recovery) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.VerifyRecoveryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		snap, err := rec.Verify(c.Request.Context(), req.ProfileName, req.PIN)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// Restore verifies the credentials again and pulls the account down. The
// snapshot is never taken from the caller.
func Restore(rec *cloudsync.Recovery) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.VerifyRecoveryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		ctx := c.Request.Context()
		snap, err := rec.Verify(ctx, req.ProfileName, req.PIN)
		if err != nil {
			writeError(c, err)
			return
		}
		res, err := rec.Restore(ctx, snap)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func CheckProfileName(rec *cloudsync.Recovery) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			badRequest(c, "name is required")
			return
		}
		ok, err := rec.CheckProfileName(c.Request.Context(), name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"available": ok})
	}
}

type registerRequest struct {
	ProfileName string `json:"profile_name"`
	PIN         string `json:"pin"`
}

func RegisterProfile(rec *cloudsync.Recovery) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		ok, err := rec.RegisterProfile(c.Request.Context(), req.ProfileName, req.PIN)
		if err != nil {
			writeError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, types.ErrorBody{Error: "profile name taken"})
			return
		}
		c.JSON(http.StatusOK, types.BoolResult{OK: true})
	}
}

type changePINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

func ChangePIN(rec *cloudsync.Recovery) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePINRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		ok, err := rec.ChangePIN(c.Request.Context(), req.CurrentPIN, req.NewPIN)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.BoolResult{OK: ok})
	}
}
