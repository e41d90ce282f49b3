package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/cloudsync"
)

// Switch is the connectivity gate as seen by the admin API.
type Switch interface {
	IsOnline() bool
	SetOnline(online bool)
}

func SyncStatus(coord *cloudsync.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.State())
	}
}

// SyncDrain runs one drain pass inline and returns its counts.
func SyncDrain(coord *cloudsync.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := coord.Drain(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func SyncMigrate(coord *cloudsync.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := coord.Migrator().Migrate(c.Request.Context())
		if err != nil {
			if res != nil {
				c.JSON(statusFor(err), res)
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func DeadLetters(coord *cloudsync.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := coord.DeadLetters(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

type requeueRequest struct {
	IDs []int64 `json:"ids"`
}

// RequeueDeadLetters gives dead letters a fresh retry budget. An empty id
// list requeues all of them.
func RequeueDeadLetters(coord *cloudsync.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requeueRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid json")
				return
			}
		}
		n, err := coord.Requeue(c.Request.Context(), req.IDs...)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": n})
	}
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

// SetConnectivity overrides the link state, as a platform network callback
// would.
func SetConnectivity(gate Switch) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req connectivityRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
			badRequest(c, "online is required")
			return
		}
		gate.SetOnline(*req.Online)
		c.JSON(http.StatusOK, gin.H{"online": gate.IsOnline()})
	}
}
