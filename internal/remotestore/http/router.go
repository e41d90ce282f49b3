package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/middleware"
	"fitlog-go/internal/remotestore/handlers"
	"fitlog-go/pkg/types"
)

func NewRouter(cfg config.ServerConfig, h *handlers.TableHandler, logger *logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "apikey"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/rest/v1")
	v1.Use(middleware.RequireKey(cfg.AuthToken))
	{
		v1.POST("/"+types.TableUsers, h.UpsertUser)
		v1.GET("/"+types.TableUsers+"/:id", h.GetUser)
		v1.DELETE("/"+types.TableUsers+"/:id", h.DeleteUser)

		v1.POST("/"+types.TableSessions, h.UpsertSession)
		v1.GET("/"+types.TableSessions, h.ListSessions)
		v1.DELETE("/"+types.TableSessions, h.DeleteRows(types.TableSessions))

		v1.POST("/"+types.TableSetLogs, h.InsertSetLogs)
		v1.GET("/"+types.TableSetLogs, h.ListSetLogs)
		v1.DELETE("/"+types.TableSetLogs, h.DeleteRows(types.TableSetLogs))

		v1.POST("/"+types.TableWeightHistory, h.InsertWeightHistory)
		v1.GET("/"+types.TableWeightHistory, h.ListWeightHistory)
		v1.DELETE("/"+types.TableWeightHistory, h.DeleteRows(types.TableWeightHistory))

		v1.POST("/"+types.TableEstimatedMaxes, h.InsertEstimatedMaxes)
		v1.GET("/"+types.TableEstimatedMaxes, h.ListEstimatedMaxes)
		v1.DELETE("/"+types.TableEstimatedMaxes, h.DeleteRows(types.TableEstimatedMaxes))

		v1.POST("/"+types.TableFeedback, h.InsertFeedback)
		v1.GET("/"+types.TableFeedback, h.ListFeedback)
		v1.DELETE("/"+types.TableFeedback, h.DeleteRows(types.TableFeedback))

		rpc := v1.Group("/rpc")
		rpc.POST("/check_profile_name_available", h.CheckProfileName)
		rpc.POST("/register_profile", h.RegisterProfile)
		rpc.POST("/verify_recovery", h.VerifyRecovery)
		rpc.POST("/change_recovery_pin", h.ChangeRecoveryPIN)
	}
	return r
}
