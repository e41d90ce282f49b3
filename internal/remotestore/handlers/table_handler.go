package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/remotestore/repos"
	"fitlog-go/internal/remotestore/services"
	"fitlog-go/pkg/types"
)

type TableHandler struct {
	svc *services.Service
}

func NewTableHandler(svc *services.Service) *TableHandler {
	return &TableHandler{svc: svc}
}

func (h *TableHandler) UpsertUser(c *gin.Context) {
	var body types.UserRow
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "invalid json body"})
		return
	}
	u, err := h.svc.UpsertUser(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *TableHandler) GetUser(c *gin.Context) {
	u, err := h.svc.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *TableHandler) DeleteUser(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TableHandler) UpsertSession(c *gin.Context) {
	var body types.SessionRow
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "invalid json body"})
		return
	}
	s, err := h.svc.UpsertSession(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *TableHandler) ListSessions(c *gin.Context) {
	rows, err := h.svc.ListSessions(c.Request.Context(), c.Query("user_id"), c.Query("local_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *TableHandler) InsertSetLogs(c *gin.Context) {
	var rows []types.SetLogRow
	if !bindRows(c, &rows) {
		return
	}
	h.created(c, h.svc.InsertSetLogs(c.Request.Context(), rows))
}

func (h *TableHandler) ListSetLogs(c *gin.Context) {
	sessionID, _ := strconv.ParseInt(strings.TrimSpace(c.Query("session_id")), 10, 64)
	rows, err := h.svc.ListSetLogs(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *TableHandler) InsertWeightHistory(c *gin.Context) {
	var rows []types.WeightRow
	if !bindRows(c, &rows) {
		return
	}
	h.created(c, h.svc.InsertWeightHistory(c.Request.Context(), rows))
}

func (h *TableHandler) ListWeightHistory(c *gin.Context) {
	rows, err := h.svc.ListWeightHistory(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *TableHandler) InsertEstimatedMaxes(c *gin.Context) {
	var rows []types.EstimatedMaxRow
	if !bindRows(c, &rows) {
		return
	}
	h.created(c, h.svc.InsertEstimatedMaxes(c.Request.Context(), rows))
}

func (h *TableHandler) ListEstimatedMaxes(c *gin.Context) {
	rows, err := h.svc.ListEstimatedMaxes(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *TableHandler) InsertFeedback(c *gin.Context) {
	var rows []types.FeedbackRow
	if !bindRows(c, &rows) {
		return
	}
	h.created(c, h.svc.InsertFeedback(c.Request.Context(), rows))
}

func (h *TableHandler) ListFeedback(c *gin.Context) {
	rows, err := h.svc.ListFeedback(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// DeleteRows builds the DELETE handler for one table.
func (h *TableHandler) DeleteRows(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.svc.DeleteRows(c.Request.Context(), table, c.Query("user_id"), c.Query("local_id"))
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	}
}

func (h *TableHandler) CheckProfileName(c *gin.Context) {
	var body types.CheckProfileNameRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "invalid json body"})
		return
	}
	ok, err := h.svc.CheckProfileNameAvailable(c.Request.Context(), body.ProfileName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.BoolResult{OK: ok})
}

func (h *TableHandler) RegisterProfile(c *gin.Context) {
	var body types.RegisterProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "invalid json body"})
		return
	}
	ok, err := h.svc.RegisterProfile(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.BoolResult{OK: ok})
}

func (h *TableHandler) VerifyRecovery(c *gin.Context) {
	var body types.VerifyRecoveryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "invalid json body"})
		return
	}
	out, err := h.svc.VerifyRecovery(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *TableHandler) ChangeRecoveryPIN(c *gin.Context) {
	var body types.ChangeRecoveryPINRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "invalid json body"})
		return
	}
	ok, err := h.svc.ChangeRecoveryPIN(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.BoolResult{OK: ok})
}

func bindRows(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: "expected a json array of rows"})
		return false
	}
	return true
}

func (h *TableHandler) created(c *gin.Context, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *TableHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalid):
		c.JSON(http.StatusBadRequest, types.ErrorBody{Error: err.Error()})
	case errors.Is(err, repos.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorBody{Error: "not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, types.ErrorBody{Error: err.Error()})
	}
}
