// Package reviewer manages human reviewer accounts: credential verification,
// access token minting, and device binding for login forensics.
package reviewer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"provenance/internal/platform/metrics"
	"provenance/internal/reviewer/device"
	"provenance/internal/reviewer/models"
	"provenance/internal/reviewer/secrets"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Accounts,TokenMinter,SecurityAuditor

// Accounts is the account store surface the login flow needs.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	SaveDeviceFingerprint(ctx context.Context, reviewerID id.ReviewerID, fingerprint string) error
}

// TokenMinter issues signed reviewer access tokens.
type TokenMinter interface {
	GenerateAccessToken(reviewerID id.ReviewerID, version id.APIVersion, expiresIn time.Duration) (string, error)
}

// SecurityAuditor records login outcomes for SIEM pipelines. Emission is
// non-blocking; login latency must not depend on the audit backend.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

const defaultTokenTTL = time.Hour

// Failed logins all surface the same error so responses do not reveal which
// part of the credentials was wrong.
var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

// Service authenticates reviewers and mints their access tokens.
type Service struct {
	accounts Accounts
	tokens   TokenMinter
	devices  *device.Service

	logger   *slog.Logger
	metrics  *metrics.Metrics
	security SecurityAuditor
	tokenTTL time.Duration
	clock    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSecurityAuditor(auditor SecurityAuditor) Option {
	return func(s *Service) {
		s.security = auditor
	}
}

// WithTokenTTL overrides the default one hour token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithClock overrides the audit timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(accounts Accounts, tokens TokenMinter, devices *device.Service, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		tokens:   tokens,
		devices:  devices,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tokenTTL: defaultTokenTTL,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult is what a successful credential exchange returns.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int // seconds
}

// Login exchanges reviewer credentials for an access token. Every attempt is
// recorded as a security audit event; failures never say whether the email
// or the password was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.recordFailure(ctx, email, "unknown_email")
		return nil, errInvalidCredentials
	}
	if err != nil {
		s.metrics.IncrementReviewerLogin("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load reviewer account")
	}

	if !account.Active {
		s.recordFailure(ctx, account.Email, "account_inactive")
		return nil, errInvalidCredentials
	}

	if err := secrets.Verify(password, account.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.recordFailure(ctx, account.Email, "invalid_password")
			return nil, errInvalidCredentials
		}
		s.metrics.IncrementReviewerLogin("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not verify credentials")
	}

	accessToken, err := s.tokens.GenerateAccessToken(account.ID, id.DefaultVersion(), s.tokenTTL)
	if err != nil {
		s.metrics.IncrementReviewerLogin("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not mint access token")
	}

	drift := s.bindDevice(ctx, account)

	s.metrics.IncrementReviewerLogin("success")
	event := audit.SecurityEvent{
		Subject:    account.Email,
		Action:     string(audit.EventReviewerLoggedIn),
		ReviewerID: account.ID.String(),
		Severity:   audit.SeverityInfo,
	}
	if drift {
		event.Reason = "new_device"
		event.Severity = audit.SeverityWarning
	}
	s.emitSecurity(ctx, event)

	s.logger.InfoContext(ctx, "reviewer logged in",
		"reviewer_id", account.ID,
		"request_id", requestcontext.RequestID(ctx),
		"new_device", drift,
	)

	return &LoginResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}

// bindDevice fingerprints the logging-in device and persists it when it
// changed. Returns true when the account had a different fingerprint bound,
// meaning the reviewer switched devices or browsers since the last login.
func (s *Service) bindDevice(ctx context.Context, account *models.Account) bool {
	if s.devices == nil {
		return false
	}

	fingerprint := s.devices.ComputeFingerprint(requestcontext.UserAgent(ctx))
	matched, drift := s.devices.CompareFingerprints(fingerprint, account.LastDeviceFingerprint)
	if fingerprint != "" && !matched {
		if err := s.accounts.SaveDeviceFingerprint(ctx, account.ID, fingerprint); err != nil {
			// Binding is best effort; the login itself already succeeded.
			s.logger.WarnContext(ctx, "could not save device fingerprint",
				"reviewer_id", account.ID,
				"error", err,
			)
		}
	}
	return drift
}

func (s *Service) recordFailure(ctx context.Context, email, reason string) {
	s.metrics.IncrementReviewerLogin("bad_credentials")
	s.emitSecurity(ctx, audit.SecurityEvent{
		Subject:  models.NormalizeEmail(email),
		Action:   string(audit.EventReviewerLoginFailed),
		Reason:   reason,
		Severity: audit.SeverityWarning,
	})
	s.logger.WarnContext(ctx, "reviewer login failed",
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) emitSecurity(ctx context.Context, event audit.SecurityEvent) {
	if s.security == nil {
		return
	}
	event.Timestamp = s.clock()
	event.IP = requestcontext.ClientIP(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.DeviceLabel = device.ParseUserAgent(requestcontext.UserAgent(ctx))
	s.security.Emit(ctx, event)
}
