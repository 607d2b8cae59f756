package checkin

// Step names the stage of a check-in that decided its outcome.
type Step int

const (
	StepRequest Step = iota
	StepTokenValidation
	StepSessionCheck
	StepMembershipCheck
	StepDuplicateCheck
	StepRegister
	StepNonceConsume
	StepAudit
)

func (s Step) String() string {
	switch s {
	case StepRequest:
		return "request"
	case StepTokenValidation:
		return "token_validation"
	case StepSessionCheck:
		return "session_check"
	case StepMembershipCheck:
		return "membership_check"
	case StepDuplicateCheck:
		return "duplicate_check"
	case StepRegister:
		return "register"
	case StepNonceConsume:
		return "nonce_consume"
	case StepAudit:
		return "audit"
	default:
		return "unknown"
	}
}
