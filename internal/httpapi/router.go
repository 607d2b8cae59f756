// Package httpapi exposes the attendance core over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/attendance"
	"github.com/crisb2reis/Sistema-Escolar/internal/audit"
	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
	"github.com/crisb2reis/Sistema-Escolar/internal/checkin"
	"github.com/crisb2reis/Sistema-Escolar/internal/credential"
	"github.com/crisb2reis/Sistema-Escolar/internal/httpmiddleware"
	"github.com/crisb2reis/Sistema-Escolar/internal/session"
)

// HealthCheck is a named dependency probe reported by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

// Deps is everything the router needs.
type Deps struct {
	Log           logrus.FieldLogger
	CORSOrigins   []string
	JWTSigningKey string
	JWTIssuer     string

	Sessions   *session.Registry
	Issuer     *credential.Issuer
	CheckIn    *checkin.Service
	Attendance *attendance.Registrar
	Audit      *audit.Emitter
	Health     []HealthCheck
}

type api struct {
	Deps
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	a := &api{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log, "/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS(d.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", a.healthz)

	v1 := r.Group("/api/v1", auth.Authenticate(d.JWTSigningKey, d.JWTIssuer))
	staff := auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin)

	v1.POST("/classes/:id/sessions", staff, a.openSession)
	v1.GET("/sessions", staff, a.listSessions)
	v1.GET("/sessions/:id", staff, a.getSession)
	v1.PUT("/sessions/:id/close", staff, a.closeSession)
	v1.POST("/sessions/:id/qrcode", staff, a.generateQRCode)
	v1.GET("/sessions/:id/attendances", staff, a.sessionAttendances)
	v1.POST("/sessions/:id/attendances", staff, a.manualAttendance)

	v1.POST("/checkin", auth.RequireRole(auth.RoleStudent), a.checkIn)
	v1.GET("/students/:id/attendances", a.studentAttendances)

	return r
}

func (a *api) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, h := range a.Health {
		ok := h.Check(c.Request.Context())
		body[h.Name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
