// Package httpserver builds the local admin API.
package httpserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fitlog-go/internal/accounts"
	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/handlers"
	"fitlog-go/internal/logbook"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/middleware"
)

// Deps is everything the admin API serves.
type Deps struct {
	Coordinator *cloudsync.Coordinator
	Gate        handlers.Switch
	Accounts    *accounts.Service
	Logbook     *logbook.Logbook
	Logger      *logging.Logger
	// AdminKey guards every route but /healthz when set.
	AdminKey string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Logger != nil {
		r.Use(middleware.RequestLogger(d.Logger))
	}
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
	}))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := r.Group("/", middleware.RequireKey(d.AdminKey))

	api.GET("/sync/status", handlers.SyncStatus(d.Coordinator))
	api.POST("/sync/drain", handlers.SyncDrain(d.Coordinator))
	api.POST("/sync/migrate", handlers.SyncMigrate(d.Coordinator))
	api.GET("/sync/dead-letters", handlers.DeadLetters(d.Coordinator))
	api.POST("/sync/dead-letters/requeue", handlers.RequeueDeadLetters(d.Coordinator))
	api.POST("/connectivity", handlers.SetConnectivity(d.Gate))

	rec := d.Coordinator.Recovery()
	api.POST("/recovery/verify", handlers.VerifyRecovery(rec))
	api.POST("/recovery/restore", handlers.Restore(rec))
	api.GET("/recovery/profile/available", handlers.CheckProfileName(rec))
	api.POST("/recovery/profile", handlers.RegisterProfile(rec))
	api.POST("/recovery/pin", handlers.ChangePIN(rec))

	api.POST("/account", handlers.CreateAccount(d.Accounts))
	api.GET("/account", handlers.CurrentAccount(d.Accounts))
	api.PUT("/account", handlers.RenameAccount(d.Accounts))

	api.POST("/sessions", handlers.StartSession(d.Logbook))
	api.POST("/sessions/:id/complete", handlers.CompleteSession(d.Logbook))
	api.DELETE("/sessions/:id", handlers.DeleteSession(d.Logbook))
	api.POST("/sessions/:id/sets", handlers.LogSet(d.Logbook))
	api.POST("/weights", handlers.RecordWeight(d.Logbook))
	api.POST("/estimated-maxes", handlers.RecordEstimatedMax(d.Logbook))
	api.POST("/feedback", handlers.SaveFeedback(d.Logbook))
	return r
}
