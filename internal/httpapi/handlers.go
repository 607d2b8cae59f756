package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
	"github.com/crisb2reis/Sistema-Escolar/internal/audit"
	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
	"github.com/crisb2reis/Sistema-Escolar/internal/checkin"
	"github.com/crisb2reis/Sistema-Escolar/internal/session"
)

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, offset = 100, 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		offset = v
	}
	return limit, offset
}

func (a *api) openSession(c *gin.Context) {
	var req struct {
		SubjectID *string    `json:"subject_id"`
		StartAt   *time.Time `json:"start_at"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		a.badRequest(c, err)
		return
	}
	actor := identity(c)
	s, err := a.Sessions.Open(c.Request.Context(), actor, session.OpenParams{
		ClassID:   c.Param("id"),
		SubjectID: req.SubjectID,
		StartAt:   req.StartAt,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.Audit.Emit(c.Request.Context(), actor.ID, audit.ActionCreateSession, map[string]any{
		"session_id": s.ID,
		"class_id":   s.ClassID,
	})
	c.JSON(http.StatusCreated, s)
}

func (a *api) listSessions(c *gin.Context) {
	limit, offset := pagination(c)
	sessions, err := a.Sessions.List(c.Request.Context(), identity(c), limit, offset)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ownedSession loads the path session and checks the caller may manage it.
func (a *api) ownedSession(c *gin.Context) (session.Session, bool) {
	s, err := a.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return session.Session{}, false
	}
	if !identity(c).CanManage(s.TeacherID) {
		a.writeError(c, apperr.Forbidden("not authorized for this session"))
		return session.Session{}, false
	}
	return s, true
}

func (a *api) getSession(c *gin.Context) {
	s, ok := a.ownedSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s)
}

func (a *api) closeSession(c *gin.Context) {
	actor := identity(c)
	s, err := a.Sessions.Close(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.Audit.Emit(c.Request.Context(), actor.ID, audit.ActionCloseSession, map[string]any{
		"session_id": s.ID,
	})
	c.JSON(http.StatusOK, s)
}

func (a *api) generateQRCode(c *gin.Context) {
	var req struct {
		ExpiresInMinutes *int `json:"expires_in_minutes"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		a.badRequest(c, err)
		return
	}
	if v := c.Query("expires_in_minutes"); v != "" && req.ExpiresInMinutes == nil {
		n, err := strconv.Atoi(v)
		if err != nil {
			a.writeError(c, apperr.Validation("expires_in_minutes must be a positive integer"))
			return
		}
		req.ExpiresInMinutes = &n
	}

	actor := identity(c)
	out, err := a.Issuer.Issue(c.Request.Context(), actor, c.Param("id"), req.ExpiresInMinutes)
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.Audit.Emit(c.Request.Context(), actor.ID, audit.ActionGenerateQRCode, map[string]any{
		"session_id": c.Param("id"),
		"token_id":   out.TokenID,
		"expires_at": out.ExpiresAt,
	})
	c.JSON(http.StatusOK, out)
}

func (a *api) checkIn(c *gin.Context) {
	var req checkin.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	res, err := a.CheckIn.CheckIn(c.Request.Context(), identity(c), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *api) sessionAttendances(c *gin.Context) {
	s, ok := a.ownedSession(c)
	if !ok {
		return
	}
	records, err := a.Attendance.ListBySession(c.Request.Context(), s.ID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "total": len(records), "attendances": nonNil(records)})
}

func (a *api) manualAttendance(c *gin.Context) {
	var req checkin.ManualParams
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	rec, err := a.CheckIn.RegisterManual(c.Request.Context(), identity(c), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (a *api) studentAttendances(c *gin.Context) {
	actor := identity(c)
	studentID := c.Param("id")
	if actor.Role == auth.RoleStudent && actor.ID != studentID {
		a.writeError(c, apperr.Forbidden("students can only see their own attendances"))
		return
	}
	limit, offset := pagination(c)
	records, err := a.Attendance.ListByStudent(c.Request.Context(), studentID, limit, offset)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": studentID, "attendances": nonNil(records)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
