package entities

import (
	"time"

	"github.com/arhteh596/granovskicrm-sub001/internal/domain"
)

// Step is the current screen of an auth flow
type Step string

const (
	StepPhone    Step = "phone"
	StepCode     Step = "code"
	StepPassword Step = "password"
	StepSuccess  Step = "success"
)

// CodeStage refines the code step
type CodeStage string

const (
	CodeStageNormal            CodeStage = "normal"
	CodeStageEmailVerification CodeStage = "email_verification"
)

// PasswordStage refines the password step
type PasswordStage string

const (
	PasswordStageEnter PasswordStage = "enter"
	PasswordStageReset PasswordStage = "reset"
)

// Flow is one in-progress authentication attempt
type Flow struct {
	ID            string
	PhoneNumber   string
	Step          Step
	CodeStage     CodeStage
	PasswordStage PasswordStage

	SentTo       string
	CodeLength   int
	EmailPattern string
	// PendingEmail is the address awaiting verification during email setup
	PendingEmail string
	PasswordHint string
	// ResetEmailPattern is the masked recovery email shown during 2FA reset
	ResetEmailPattern string

	CreatedAt     time.Time
	ExpiresAt     time.Time
	cooldownUntil time.Time
	inFlight      bool
}

// BeginTransition marks the flow busy for one transition. Reports false
// when a previous transition's remote call is still outstanding. Callers
// synchronize access through the owning use case's lock.
func (f *Flow) BeginTransition() bool {
	if f.inFlight {
		return false
	}
	f.inFlight = true
	return true
}

// EndTransition clears the in-flight marker
func (f *Flow) EndTransition() {
	f.inFlight = false
}

// InFlight reports whether a transition currently holds the flow
func (f *Flow) InFlight() bool {
	return f.inFlight
}

// StartCooldown arms the resend cooldown for the given number of seconds
func (f *Flow) StartCooldown(seconds int) {
	if seconds <= 0 {
		seconds = 0
	}
	f.cooldownUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}

// CooldownLeft returns the whole seconds left before a resend is allowed,
// never negative
func (f *Flow) CooldownLeft() int {
	left := time.Until(f.cooldownUntil)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// IsExpired returns true once the flow has outlived its TTL
func (f *Flow) IsExpired() bool {
	return time.Now().After(f.ExpiresAt)
}

// ApplySentCode records the outcome of a code request on the flow
func (f *Flow) ApplySentCode(sc *domain.SentCode, defaultCooldown int) {
	f.Step = StepCode
	f.SentTo = sc.SentTo
	f.CodeLength = sc.CodeLength
	if sc.NeedsEmailSetup {
		f.CodeStage = CodeStageEmailVerification
		f.EmailPattern = sc.EmailPattern
	} else {
		f.CodeStage = CodeStageNormal
	}
	cooldown := sc.Timeout
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	f.StartCooldown(cooldown)
}

// SendCodeResult is the outcome of requesting a login code
type SendCodeResult struct {
	PhoneNumber     string
	Step            Step
	CodeStage       CodeStage
	SentTo          string
	CodeLength      int
	Cooldown        int
	NeedsEmailSetup bool
	EmailPattern    string
}

// VerifyCodeResult is the outcome of submitting a login code
type VerifyCodeResult struct {
	Authenticated    bool
	RequiresPassword bool
	PasswordHint     string
	User             *domain.AccountInfo
}

// PasswordResult is the outcome of submitting the 2FA password
type PasswordResult struct {
	Authenticated bool
	User          *domain.AccountInfo
}

// ResetCodeResult is the outcome of requesting a 2FA recovery code
type ResetCodeResult struct {
	EmailPattern string
}

// EmailCodeResult is the outcome of submitting a login email address
type EmailCodeResult struct {
	EmailPattern string
	CodeLength   int
}
