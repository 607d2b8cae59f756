// Package checkin is the entry point students use to redeem a QR credential
// for a presence.
package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
	"github.com/crisb2reis/Sistema-Escolar/internal/attendance"
	"github.com/crisb2reis/Sistema-Escolar/internal/audit"
	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
	"github.com/crisb2reis/Sistema-Escolar/internal/credential"
	"github.com/crisb2reis/Sistema-Escolar/internal/directory"
	"github.com/crisb2reis/Sistema-Escolar/internal/lock"
	"github.com/crisb2reis/Sistema-Escolar/internal/metrics"
	"github.com/crisb2reis/Sistema-Escolar/internal/session"
)

var validate = validator.New()

// DefaultClaimTTL bounds how long one redemption can hold a nonce.
const DefaultClaimTTL = 5 * time.Second

// ClaimKey is the lock name guarding one redemption of a nonce.
func ClaimKey(nonce string) string { return "qr_token:claim:" + nonce }

// Credentials validates and consumes QR credentials.
type Credentials interface {
	Validate(ctx context.Context, token string) (credential.Grant, error)
	Consume(ctx context.Context, g credential.Grant) error
}

// Sessions is the slice of the session registry used here.
type Sessions interface {
	Get(ctx context.Context, id string) (session.Session, error)
	RequireOpen(ctx context.Context, id string) (session.Session, error)
}

// Directory resolves a student's class.
type Directory interface {
	StudentClass(ctx context.Context, userID string) (string, error)
}

// Registrar writes presences.
type Registrar interface {
	Register(ctx context.Context, e attendance.Entry) (attendance.Record, error)
	Exists(ctx context.Context, sessionID, studentID string) (bool, error)
}

// Request is what a student submits after scanning.
type Request struct {
	Token    string               `json:"token" validate:"required"`
	DeviceID *string              `json:"device_id,omitempty" validate:"omitempty,max=128"`
	Geo      *attendance.GeoPoint `json:"geo,omitempty"`
}

// Result is returned for a successful check-in.
type Result struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	AttendanceID string    `json:"attendance_id"`
}

// ManualParams names the student a teacher marks present.
type ManualParams struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	DeviceID  *string `json:"device_id,omitempty" validate:"omitempty,max=128"`
}

// Config tunes the service.
type Config struct {
	ClaimTTL time.Duration
}

// Service sequences validation, checks, registration, consumption and audit.
type Service struct {
	creds     Credentials
	sessions  Sessions
	directory Directory
	registrar Registrar
	locker    lock.Locker
	audit     *audit.Emitter
	cfg       Config
	log       logrus.FieldLogger
}

// NewService wires the orchestrator.
func NewService(creds Credentials, sessions Sessions, dir Directory, registrar Registrar, locker lock.Locker, emitter *audit.Emitter, cfg Config, log logrus.FieldLogger) *Service {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	return &Service{
		creds:     creds,
		sessions:  sessions,
		directory: dir,
		registrar: registrar,
		locker:    locker,
		audit:     emitter,
		cfg:       cfg,
		log:       log,
	}
}

// CheckIn redeems a credential for the acting student.
func (s *Service) CheckIn(ctx context.Context, actor auth.Identity, req Request) (Result, error) {
	start := time.Now()
	res, step, err := s.checkIn(ctx, actor, req)

	outcome := "present"
	entry := s.log.WithFields(logrus.Fields{"student_id": actor.ID, "step": step.String()})
	if err != nil {
		outcome = apperr.KindOf(err).String()
		if reason := apperr.ReasonOf(err); reason != "" {
			metrics.CredentialRejections.WithLabelValues(reason).Inc()
			entry = entry.WithField("reason", reason)
		}
		if apperr.Is(err, apperr.KindInfrastructure) || apperr.KindOf(err) == apperr.KindInternal {
			entry.WithError(err).Error("check-in failed")
		} else {
			entry.WithError(err).Info("check-in rejected")
		}
	} else {
		entry.WithField("attendance_id", res.AttendanceID).Info("check-in registered")
	}
	metrics.CheckIns.WithLabelValues(outcome, step.String()).Inc()
	metrics.CheckInDuration.Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) checkIn(ctx context.Context, actor auth.Identity, req Request) (Result, Step, error) {
	if actor.Role != auth.RoleStudent {
		return Result{}, StepRequest, apperr.Forbidden("only students can check in")
	}
	if err := validate.Struct(req); err != nil {
		return Result{}, StepRequest, apperr.Wrap(apperr.KindValidation, "invalid check-in request", err)
	}

	grant, err := s.creds.Validate(ctx, req.Token)
	if err != nil {
		return Result{}, StepTokenValidation, err
	}

	sess, err := s.sessions.RequireOpen(ctx, grant.SessionID)
	if err != nil {
		return Result{}, StepSessionCheck, err
	}

	if err := s.requireMember(ctx, actor.ID, sess); err != nil {
		return Result{}, StepMembershipCheck, err
	}

	// Only one redemption of a nonce may be past this point at a time.
	claim, ok, err := s.locker.Acquire(ctx, ClaimKey(grant.Nonce), s.cfg.ClaimTTL)
	if err != nil {
		return Result{}, StepTokenValidation, apperr.Infra("claim credential", err)
	}
	if !ok {
		return Result{}, StepTokenValidation, apperr.InvalidCredential(credential.ReasonAlreadyUsed, "token already used")
	}
	keepClaim := false
	defer func() {
		if keepClaim {
			return
		}
		if err := claim.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithField("lock", claim.Key()).WithError(err).Warn("release credential claim")
		}
	}()

	// The nonce may have been consumed between the first check and the claim.
	if grant, err = s.creds.Validate(ctx, req.Token); err != nil {
		return Result{}, StepTokenValidation, err
	}

	exists, err := s.registrar.Exists(ctx, sess.ID, actor.ID)
	if err != nil {
		return Result{}, StepDuplicateCheck, err
	}
	if exists {
		return Result{}, StepDuplicateCheck, apperr.Conflict("attendance already registered")
	}

	rec, err := s.registrar.Register(ctx, attendance.Entry{
		SessionID: sess.ID,
		StudentID: actor.ID,
		Method:    attendance.MethodCredential,
		DeviceID:  req.DeviceID,
		Geo:       req.Geo,
	})
	if err != nil {
		return Result{}, StepRegister, err
	}

	last := StepAudit
	if err := s.creds.Consume(ctx, grant); err != nil {
		// The presence is committed; leave the claim to expire so the nonce
		// cannot be redeemed again right away.
		keepClaim = true
		last = StepNonceConsume
		metrics.ConsumeFailures.Inc()
		s.log.WithFields(logrus.Fields{
			"session_id":    sess.ID,
			"attendance_id": rec.ID,
			"credential_id": grant.CredentialID,
		}).WithError(err).Error("credential not marked used after check-in")
	}

	s.audit.Emit(ctx, actor.ID, audit.ActionCheckIn, map[string]any{
		"session_id":    sess.ID,
		"attendance_id": rec.ID,
		"device_id":     req.DeviceID,
	})

	return Result{Status: "present", Timestamp: rec.Timestamp, AttendanceID: rec.ID}, last, nil
}

func (s *Service) requireMember(ctx context.Context, studentID string, sess session.Session) error {
	classID, err := s.directory.StudentClass(ctx, studentID)
	switch {
	case errors.Is(err, directory.ErrStudentNotFound):
		return apperr.NotFound("student profile not found")
	case err != nil:
		return apperr.Infra("lookup student", err)
	case classID != sess.ClassID:
		return apperr.Forbidden("student is not enrolled in this session's class")
	}
	return nil
}

// RegisterManual marks a student present without a credential. The session
// owner or an administrator may do so whether or not the session is still open.
func (s *Service) RegisterManual(ctx context.Context, actor auth.Identity, sessionID string, p ManualParams) (attendance.Record, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return attendance.Record{}, err
	}
	if !actor.CanManage(sess.TeacherID) {
		return attendance.Record{}, apperr.Forbidden("not authorized to register attendance for this session")
	}
	if err := validate.Struct(p); err != nil {
		return attendance.Record{}, apperr.Wrap(apperr.KindValidation, "invalid manual attendance", err)
	}

	classID, err := s.directory.StudentClass(ctx, p.StudentID)
	switch {
	case errors.Is(err, directory.ErrStudentNotFound):
		return attendance.Record{}, apperr.NotFound("student profile not found")
	case err != nil:
		return attendance.Record{}, apperr.Infra("lookup student", err)
	case classID != sess.ClassID:
		return attendance.Record{}, apperr.Validation("student is not enrolled in this session's class")
	}

	rec, err := s.registrar.Register(ctx, attendance.Entry{
		SessionID: sess.ID,
		StudentID: p.StudentID,
		Method:    attendance.MethodManual,
		DeviceID:  p.DeviceID,
	})
	if err != nil {
		return attendance.Record{}, err
	}

	s.audit.Emit(ctx, actor.ID, audit.ActionManualAttendance, map[string]any{
		"session_id":    sess.ID,
		"attendance_id": rec.ID,
		"student_id":    p.StudentID,
	})
	s.log.WithFields(logrus.Fields{"session_id": sess.ID, "student_id": p.StudentID, "actor_id": actor.ID}).
		Info("manual attendance registered")
	return rec, nil
}
