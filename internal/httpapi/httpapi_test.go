package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisb2reis/Sistema-Escolar/internal/attendance"
	"github.com/crisb2reis/Sistema-Escolar/internal/audit"
	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
	"github.com/crisb2reis/Sistema-Escolar/internal/checkin"
	"github.com/crisb2reis/Sistema-Escolar/internal/credential"
	"github.com/crisb2reis/Sistema-Escolar/internal/directory"
	"github.com/crisb2reis/Sistema-Escolar/internal/lock"
	"github.com/crisb2reis/Sistema-Escolar/internal/logging"
	"github.com/crisb2reis/Sistema-Escolar/internal/qr"
	"github.com/crisb2reis/Sistema-Escolar/internal/session"
)

const (
	apiKey    = "api-key"
	apiIssuer = "attendance-engine"
)

type server struct {
	router  *gin.Engine
	sink    *audit.MemorySink
	classID string
	teacher string
	student string
	healthy bool
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.Discard()
	s := &server{
		sink:    &audit.MemorySink{},
		classID: uuid.NewString(),
		teacher: uuid.NewString(),
		student: uuid.NewString(),
		healthy: true,
	}

	dir := directory.NewMemory()
	dir.AddClass(s.classID)
	dir.Enroll(s.student, s.classID)
	sessions := session.NewRegistry(session.NewMemoryRepository(), dir)

	signer, err := credential.NewSigner("qr-key")
	require.NoError(t, err)
	creds := credential.NewMemoryRepository()
	nonces := credential.NewMemoryNonceStore()
	issuer := credential.NewIssuer(sessions, creds, nonces, signer, qr.New("", 64),
		credential.IssuerConfig{DefaultTTL: 10 * time.Minute, MaxTTL: time.Hour}, log)
	validator := credential.NewValidator(creds, nonces, signer)

	locker := lock.NewMemory()
	registrar := attendance.NewRegistrar(attendance.NewMemoryRepository(), locker, 0, log)
	emitter := audit.NewEmitter(s.sink, log)
	svc := checkin.NewService(validator, sessions, dir, registrar, locker, emitter, checkin.Config{}, log)

	s.router = NewRouter(Deps{
		Log:           log,
		JWTSigningKey: apiKey,
		JWTIssuer:     apiIssuer,
		Sessions:      sessions,
		Issuer:        issuer,
		CheckIn:       svc,
		Attendance:    registrar,
		Audit:         emitter,
		Health:        []HealthCheck{{Name: "redis", Check: func(context.Context) bool { return s.healthy }}},
	})
	return s
}

func bearer(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	tok, _, err := auth.Issue(id, role, apiIssuer, apiKey, time.Minute)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestAttendanceFlow(t *testing.T) {
	s := newServer(t)
	teacher := bearer(t, s.teacher, auth.RoleTeacher)
	student := bearer(t, s.student, auth.RoleStudent)

	code, sess := s.do(t, http.MethodPost, "/api/v1/classes/"+s.classID+"/sessions", teacher, nil)
	require.Equal(t, http.StatusCreated, code, sess)
	assert.Equal(t, "open", sess["status"])
	sessionID := sess["id"].(string)

	code, issued := s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode", teacher, map[string]any{"expires_in_minutes": 5})
	require.Equal(t, http.StatusOK, code, issued)
	assert.NotEmpty(t, issued["qr_image"])
	token := issued["token"].(string)

	code, res := s.do(t, http.MethodPost, "/api/v1/checkin", student, map[string]any{"token": token, "device_id": "phone"})
	require.Equal(t, http.StatusOK, code, res)
	assert.Equal(t, "present", res["status"])

	code, res = s.do(t, http.MethodPost, "/api/v1/checkin", student, map[string]any{"token": token})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "credential_invalid", res["code"])
	assert.Equal(t, credential.ReasonAlreadyUsed, res["reason"])

	code, list := s.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/attendances", teacher, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, list["total"])

	code, mine := s.do(t, http.MethodGet, "/api/v1/students/"+s.student+"/attendances", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, mine["attendances"], 1)

	code, closed := s.do(t, http.MethodPut, "/api/v1/sessions/"+sessionID+"/close", teacher, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "closed", closed["status"])

	code, res = s.do(t, http.MethodPut, "/api/v1/sessions/"+sessionID+"/close", teacher, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_state", res["code"])

	code, _ = s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode", teacher, nil)
	assert.Equal(t, http.StatusConflict, code)

	var actions []string
	for _, e := range s.sink.Events() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		audit.ActionCreateSession,
		audit.ActionGenerateQRCode,
		audit.ActionCheckIn,
		audit.ActionCloseSession,
	}, actions)
}

func TestAuthorization(t *testing.T) {
	s := newServer(t)
	teacher := bearer(t, s.teacher, auth.RoleTeacher)
	student := bearer(t, s.student, auth.RoleStudent)
	other := bearer(t, uuid.NewString(), auth.RoleTeacher)

	code, _ := s.do(t, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	_, sess := s.do(t, http.MethodPost, "/api/v1/classes/"+s.classID+"/sessions", teacher, nil)
	sessionID := sess["id"].(string)

	code, _ = s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, res := s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode", other, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", res["code"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID, other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/checkin", teacher, map[string]any{"token": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/students/"+uuid.NewString()+"/attendances", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestQRCodeValidation(t *testing.T) {
	s := newServer(t)
	teacher := bearer(t, s.teacher, auth.RoleTeacher)
	_, sess := s.do(t, http.MethodPost, "/api/v1/classes/"+s.classID+"/sessions", teacher, nil)
	sessionID := sess["id"].(string)

	code, res := s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode", teacher, map[string]any{"expires_in_minutes": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", res["code"])

	code, _ = s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode?expires_in_minutes=abc", teacher, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/qrcode?expires_in_minutes=3", teacher, nil)
	require.Equal(t, http.StatusOK, code)
	exp, err := time.Parse(time.RFC3339Nano, res["expires_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(3*time.Minute), exp, 5*time.Second)

	code, _ = s.do(t, http.MethodPost, "/api/v1/checkin", bearer(t, s.student, auth.RoleStudent), map[string]any{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestManualAttendance(t *testing.T) {
	s := newServer(t)
	teacher := bearer(t, s.teacher, auth.RoleTeacher)
	_, sess := s.do(t, http.MethodPost, "/api/v1/classes/"+s.classID+"/sessions", teacher, nil)
	sessionID := sess["id"].(string)

	code, rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/attendances", teacher, map[string]any{"student_id": s.student})
	require.Equal(t, http.StatusCreated, code, rec)
	assert.Equal(t, "manual", rec["method"])

	code, res := s.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/attendances", teacher, map[string]any{"student_id": s.student})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", res["code"])
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	code, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["redis"])

	s.healthy = false
	code, body = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}
