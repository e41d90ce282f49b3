package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/accounts"
	"fitlog-go/internal/logbook"
)

type accountRequest struct {
	Name string `json:"name"`
}

func CreateAccount(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req accountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		u, err := svc.Create(c.Request.Context(), req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

func CurrentAccount(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Current(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func RenameAccount(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req accountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		u, err := svc.Rename(c.Request.Context(), req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

type sessionRequest struct {
	TemplateID string `json:"template_id"`
	Notes      string `json:"notes"`
}

func StartSession(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		s, err := lb.StartSession(c.Request.Context(), req.TemplateID, req.Notes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

func CompleteSession(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req sessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid json")
				return
			}
		}
		s, err := lb.CompleteSession(c.Request.Context(), id, req.Notes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func DeleteSession(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := lb.DeleteSession(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// LogSet takes the session from the path; a session_id in the body is
// ignored.
func LogSet(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var in logbook.SetInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid json")
			return
		}
		in.SessionID = id
		set, err := lb.LogSet(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, set)
	}
}

type weightRequest struct {
	Weight float64 `json:"weight"`
	Unit   string  `json:"unit"`
}

func RecordWeight(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req weightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		w, err := lb.RecordWeight(c.Request.Context(), req.Weight, req.Unit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, w)
	}
}

type maxRequest struct {
	ExerciseID string  `json:"exercise_id"`
	Weight     float64 `json:"weight"`
	Reps       int     `json:"reps"`
}

func RecordEstimatedMax(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req maxRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		m, err := lb.RecordEstimatedMax(c.Request.Context(), req.ExerciseID, req.Weight, req.Reps)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

type feedbackRequest struct {
	SessionID *int64 `json:"session_id"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
}

func SaveFeedback(lb *logbook.Logbook) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req feedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
		f, err := lb.SaveFeedback(c.Request.Context(), req.SessionID, req.Kind, req.Content)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, f)
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid session id")
		return 0, false
	}
	return id, true
}
