// Package auth implements phone registration, OTP verification and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Proton-105/ruz-auth/internal/domain"
	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/internal/otp"
	"github.com/Proton-105/ruz-auth/internal/repository"
	"github.com/Proton-105/ruz-auth/internal/state"
)

const (
	otpAPI                   = "telnyx"
	defaultEnrichmentTimeout = 30 * time.Second

	MsgRegistered           = "User created. Verification SMS sent."
	MsgRegisteredOTPFailed  = "User created, but OTP failed to send."
	MsgRegisteredUnexpected = "User created, but verification service returned unexpected response."
	MsgRegisteredNoService  = "User created, but verification unavailable. Please try later."
	MsgVerified             = "OTP verified successfully."
	MsgVerifiedWithCompany  = "OTP verified successfully and company data saved."
	MsgResetCodeSent        = "If the phone exists, a reset code was sent."
	MsgPasswordResetNeutral = "If the phone exists, the password has been reset."
	MsgPasswordReset        = "Password has been reset successfully."

	msgValidationFailed  = "validation.failed"
	msgFieldsMissing     = "Required fields are missing."
	msgResetFieldsNeeded = "Fields phone, otp and newPassword are required."
	msgUserNotFound      = "User with this phone not found."
	msgServiceDown       = "Verification service unavailable. Please try later."
	msgServiceDownField  = "Verification temporarily unavailable."
	msgRequestInvalid    = "Verification request invalid."
	msgUnexpected        = "Unexpected verification provider response."
	msgBadCredentials    = "Invalid credentials."
)

// OTPProvider sends and checks one-time passcodes.
type OTPProvider interface {
	Send(ctx context.Context, phone string) (*otp.SendResult, error)
	Verify(ctx context.Context, phone, code string) otp.VerifyResult
}

// CompanyEnricher attaches registry data to a verified user.
type CompanyEnricher interface {
	EnrichForUser(ctx context.Context, user *domain.User, ico string) (*domain.Company, error)
}

// PasswordHasher hashes new passwords and checks submitted ones.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// RegisterResult is returned by a successful registration.
type RegisterResult struct {
	ID      int64  `json:"id"`
	Phone   string `json:"phone"`
	Message string `json:"-"`
	OTPSent bool   `json:"-"`
}

// VerifyResult is returned by an accepted verification.
type VerifyResult struct {
	Message   string
	Activated bool
	Company   *domain.Company
}

// Workflow drives the verification lifecycle of a user account.
type Workflow struct {
	users             repository.UserRepository
	fsm               state.StateMachine
	otp               OTPProvider
	enricher          CompanyEnricher
	hasher            PasswordHasher
	validate          *validator.Validate
	enrichmentTimeout time.Duration
	log               *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithEnrichmentTimeout bounds the company lookup performed after a successful verification.
func WithEnrichmentTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.enrichmentTimeout = d
		}
	}
}

// NewWorkflow constructs a Workflow. enricher may be nil, in which case no company data is fetched.
func NewWorkflow(
	users repository.UserRepository,
	fsm state.StateMachine,
	provider OTPProvider,
	enricher CompanyEnricher,
	hasher PasswordHasher,
	log *slog.Logger,
	opts ...Option,
) *Workflow {
	if log == nil {
		log = slog.Default()
	}

	w := &Workflow{
		users:             users,
		fsm:               fsm,
		otp:               provider,
		enricher:          enricher,
		hasher:            hasher,
		validate:          newValidator(),
		enrichmentTimeout: defaultEnrichmentTimeout,
		log:               log.With(slog.String("component", "auth_workflow")),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Register creates a pending user and sends the first verification code. A failed
// dispatch keeps the user and is reported through the result message.
func (w *Workflow) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	missing, invalid := fieldErrors(w.validate.Struct(in))
	if len(missing) > 0 {
		return nil, apperrors.NewFieldErrors(missing).WithUserMessage(msgFieldsMissing)
	}

	if err := w.ensurePhoneFree(ctx, in.Phone); err != nil {
		return nil, err
	}

	if len(invalid) > 0 {
		return nil, apperrors.NewFieldErrors(invalid).WithUserMessage(msgValidationFailed)
	}

	hashed, err := w.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("hash password", err)
	}

	user := domain.NewPendingUser(in.Phone, hashed, in.FirstName, in.LastName)
	if err := w.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicatedEntry) {
			w.log.Warn("user creation failed: phone already exists", slog.String("phone", in.Phone))
			return nil, conflictError()
		}
		w.logError("register.create", in.Phone, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	res := &RegisterResult{ID: user.ID, Phone: user.Phone}
	res.Message, res.OTPSent = w.sendRegistrationCode(ctx, user.Phone)

	return res, nil
}

func (w *Workflow) ensurePhoneFree(ctx context.Context, phone string) error {
	_, err := w.users.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return conflictError()
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		w.logError("register.find", phone, err)
		return apperrors.NewDatabaseError(err)
	}
}

func (w *Workflow) sendRegistrationCode(ctx context.Context, phone string) (string, bool) {
	sent, err := w.otp.Send(ctx, phone)
	if err == nil {
		w.log.Info("otp sent", slog.String("phone", phone), slog.String("ref", sent.Ref))
		return MsgRegistered, true
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindUpstreamRejected:
		w.log.Error("otp sending failed", slog.String("phone", phone), slog.Any("error", err))
		return MsgRegisteredOTPFailed, false
	case apperrors.KindUpstreamProtocol:
		w.log.Warn("unexpected otp response", slog.String("phone", phone), slog.Any("error", err))
		return MsgRegisteredUnexpected, false
	default:
		w.log.Error("otp send unavailable", slog.String("phone", phone), slog.Any("error", err))
		return MsgRegisteredNoService, false
	}
}

// VerifyOtp checks code with the provider and activates the user on acceptance. When
// in.ICO is set the company is looked up before returning; a failed lookup is only logged.
func (w *Workflow) VerifyOtp(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Code = strings.TrimSpace(in.Code)
	in.ICO = strings.TrimSpace(in.ICO)

	missing, invalid := fieldErrors(w.validate.Struct(in))
	if len(missing) > 0 {
		return nil, apperrors.NewFieldErrors(missing).WithUserMessage(msgFieldsMissing)
	}
	if len(invalid) > 0 {
		return nil, apperrors.NewFieldErrors(invalid).WithUserMessage(msgValidationFailed)
	}

	user, err := w.findUser(ctx, in.Phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError(msgUserNotFound).WithField("phone", msgUserNotFound)
	}

	if err := w.checkCode(ctx, "verify", in.Phone, in.Code); err != nil {
		return nil, err
	}

	activated, err := w.activate(ctx, user.ID, in.Phone)
	if err != nil {
		return nil, err
	}
	if activated {
		user.Status = domain.UserStatusActive
		user.IsVerified = true
		w.log.Info("user verified", slog.Int64("user_id", user.ID), slog.String("phone", in.Phone))
	} else {
		w.log.Info("user already verified", slog.Int64("user_id", user.ID), slog.String("phone", in.Phone))
	}

	res := &VerifyResult{Message: MsgVerified, Activated: activated}

	if in.ICO == "" {
		w.log.Warn("ico missing in otp verification request", slog.String("phone", in.Phone))
		return res, nil
	}

	if company := w.enrich(ctx, user, in.ICO); company != nil {
		res.Company = company
		res.Message = MsgVerifiedWithCompany
	}

	return res, nil
}

// activate moves the user to active. When a concurrent request holds the status lock the
// stored status decides: an already active user counts as verified.
func (w *Workflow) activate(ctx context.Context, userID int64, phone string) (bool, error) {
	activated, err := w.fsm.TransitionTo(ctx, userID, state.StateActive)
	if err == nil {
		return activated, nil
	}

	if errors.Is(err, state.ErrStateLocked) {
		current, getErr := w.fsm.GetState(ctx, userID)
		if getErr == nil && current == state.StateActive {
			w.log.Info("user activated by concurrent request", slog.Int64("user_id", userID), slog.String("phone", phone))
			return false, nil
		}
		w.logError("verify.activate", phone, err)
		return false, apperrors.NewStateError(fmt.Sprintf("user %d is being updated", userID))
	}

	w.logError("verify.activate", phone, err)
	return false, apperrors.NewDatabaseError(err)
}

// enrich runs the company lookup on a context that survives client disconnects.
func (w *Workflow) enrich(ctx context.Context, user *domain.User, ico string) *domain.Company {
	if w.enricher == nil {
		return nil
	}

	enrichCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.enrichmentTimeout)
	defer cancel()

	company, err := w.enricher.EnrichForUser(enrichCtx, user, ico)
	if err != nil {
		w.log.Warn("company enrichment skipped",
			slog.Int64("user_id", user.ID),
			slog.String("ico", ico),
			slog.Any("error", err),
		)
		return nil
	}

	return company
}

// ForgotPassword sends a reset code when the phone belongs to a user. The answer is
// the same whether or not it does.
func (w *Workflow) ForgotPassword(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", apperrors.NewFieldErrors(map[string]string{"phone": "errors.phone.required"}).
			WithUserMessage(msgValidationFailed)
	}

	user, err := w.findUser(ctx, phone)
	if err != nil {
		w.log.Error("forgot password lookup failed", slog.String("phone", phone), slog.Any("error", err))
		return MsgResetCodeSent, nil
	}

	if user != nil {
		if _, err := w.otp.Send(ctx, phone); err != nil {
			w.log.Error("forgot password otp failed", slog.String("phone", phone), slog.Any("error", err))
		} else {
			w.log.Info("forgot password otp sent", slog.String("phone", phone))
		}
	}

	return MsgResetCodeSent, nil
}

// ResetPassword replaces the password hash after the provider accepts otp.
func (w *Workflow) ResetPassword(ctx context.Context, in ResetInput) (string, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.OTP = strings.TrimSpace(in.OTP)

	missing, invalid := fieldErrors(w.validate.Struct(in))
	if len(missing) > 0 {
		return "", apperrors.NewFieldErrors(missing).WithUserMessage(msgResetFieldsNeeded)
	}
	if reason, ok := invalid["otp"]; ok {
		return "", apperrors.NewFieldErrors(map[string]string{"otp": reason}).WithUserMessage(msgValidationFailed)
	}
	if len(invalid) > 0 {
		return "", apperrors.NewFieldErrors(invalid).WithUserMessage(msgValidationFailed)
	}

	user, err := w.findUser(ctx, in.Phone)
	if err != nil {
		return "", err
	}
	if user == nil {
		return MsgPasswordResetNeutral, nil
	}

	if err := w.checkCode(ctx, "reset", in.Phone, in.OTP); err != nil {
		return "", err
	}

	hashed, err := w.hasher.Hash(in.NewPassword)
	if err != nil {
		return "", apperrors.NewInternalError("hash password", err)
	}

	if err := w.users.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		w.logError("reset.update", in.Phone, err)
		return "", apperrors.NewDatabaseError(err)
	}

	w.log.Info("password reset successful", slog.String("phone", in.Phone))
	return MsgPasswordReset, nil
}

// Login checks a phone and password pair and returns the matching user. Unknown phones
// and wrong passwords produce the same error.
func (w *Workflow) Login(ctx context.Context, in LoginInput) (*domain.User, error) {
	in.Phone = strings.TrimSpace(in.Phone)

	missing, _ := fieldErrors(w.validate.Struct(in))
	if len(missing) > 0 {
		return nil, apperrors.NewFieldErrors(missing).WithUserMessage(msgFieldsMissing)
	}

	user, err := w.findUser(ctx, in.Phone)
	if err != nil {
		return nil, err
	}
	if user == nil || !w.hasher.Compare(user.PasswordHash, in.Password) {
		w.log.Warn("login failed", slog.String("phone", in.Phone))
		return nil, apperrors.NewUnauthenticatedError(msgBadCredentials)
	}

	w.log.Info("user logged in", slog.Int64("user_id", user.ID), slog.String("phone", in.Phone))
	return user, nil
}

// checkCode verifies a code and maps every non-accepted outcome to an AppError.
func (w *Workflow) checkCode(ctx context.Context, operation, phone, code string) error {
	res := w.otp.Verify(ctx, phone, code)

	switch res.Outcome {
	case otp.OutcomeAccepted:
		return nil
	case otp.OutcomeRejected:
		w.log.Warn("otp rejected", slog.String("operation", operation), slog.String("phone", phone))
		return apperrors.NewUpstreamRejectedError(otpAPI, "code rejected").
			WithField("otp", "errors.otp.rejected").
			WithUserMessage(msgValidationFailed)
	case otp.OutcomeProviderError:
		if res.Unavailable {
			w.log.Error("otp verify unavailable",
				slog.String("operation", operation),
				slog.String("phone", phone),
				slog.String("detail", res.Detail),
			)
			return apperrors.NewUpstreamUnavailableError(otpAPI, errors.New(res.Detail)).
				WithField("otp", msgServiceDownField).
				WithUserMessage(msgServiceDown)
		}
		w.log.Warn("otp verification request invalid",
			slog.String("operation", operation),
			slog.String("phone", phone),
			slog.String("detail", res.Detail),
		)
		return apperrors.NewUpstreamRejectedError(otpAPI, res.Detail).
			WithField("otp", "errors.otp.invalid_request").
			WithUserMessage(msgRequestInvalid)
	default:
		w.log.Warn("unexpected otp verification response",
			slog.String("operation", operation),
			slog.String("phone", phone),
			slog.String("raw", res.Raw),
		)
		return apperrors.NewUpstreamProtocolError(otpAPI, res.Raw).
			WithField("otp", msgUnexpected).
			WithUserMessage(msgUnexpected)
	}
}

// findUser returns nil without error when phone is unknown.
func (w *Workflow) findUser(ctx context.Context, phone string) (*domain.User, error) {
	user, err := w.users.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	default:
		w.logError("find_user", phone, err)
		return nil, apperrors.NewDatabaseError(err)
	}
}

func conflictError() *apperrors.AppError {
	return apperrors.NewConflictError("User already exists").
		WithField("phone", "errors.phone.exists").
		WithUserMessage(msgValidationFailed)
}

func (w *Workflow) logError(operation, phone string, err error) {
	if w == nil || w.log == nil || err == nil {
		return
	}

	w.log.Error("auth workflow operation failed",
		slog.String("operation", operation),
		slog.String("phone", phone),
		slog.Any("error", err),
	)
}
