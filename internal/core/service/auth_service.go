package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/facegate/facegate/internal/core/domain"
	"github.com/facegate/facegate/internal/core/ports"
	"github.com/facegate/facegate/internal/pkg/metrics"
)

// dummyHash is verified against when the email is unknown so that password
// login takes comparable time whether or not the account exists.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z4yC5Q3ZK3nQpW6h5sQH9b2e"

// AuthService implements registration and both login modes.
type AuthService struct {
	accounts  ports.AccountRepository
	templates ports.TemplateStore
	matcher   ports.Matcher
	extractor ports.FeatureExtractor
	hasher    ports.PasswordHasher
	sessions  ports.SessionManager
	format    domain.TemplateFormat
	log       zerolog.Logger
}

// NewAuthService wires the coordinator. The acceptance threshold comes from
// format so it can never drift from the sample encoding.
func NewAuthService(
	accounts ports.AccountRepository,
	templates ports.TemplateStore,
	matcher ports.Matcher,
	extractor ports.FeatureExtractor,
	hasher ports.PasswordHasher,
	sessions ports.SessionManager,
	format domain.TemplateFormat,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		templates: templates,
		matcher:   matcher,
		extractor: extractor,
		hasher:    hasher,
		sessions:  sessions,
		format:    format,
		log:       log,
	}
}

// Register creates an account with a password and a face template. No
// session is established; the caller must log in afterwards.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" || in.Image == nil {
		return nil, fmt.Errorf("%w: email, password and image are required", domain.ErrInvalidInput)
	}
	if len(in.Password) > domain.MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, domain.MaxPasswordBytes)
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.RegistrationEmailTaken).Inc()
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	// Extraction runs before any write so a rejected image leaves no trace.
	vector, err := s.extractor.Extract(in.Image)
	if err != nil {
		if errors.Is(err, domain.ErrNotDetected) {
			metrics.RegistrationsTotal.WithLabelValues(metrics.RegistrationNotDetected).Inc()
			s.log.Info().Str("email", email).Err(err).Msg("registration rejected: face not detected")
		} else {
			metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		}
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.accounts.Create(ctx, &domain.Account{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			metrics.RegistrationsTotal.WithLabelValues(metrics.RegistrationEmailTaken).Inc()
			return nil, err
		}
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := s.templates.Attach(ctx, created.Email, vector); err != nil {
		if delErr := s.accounts.Delete(ctx, created.Email); delErr != nil {
			s.log.Error().Err(delErr).Str("email", created.Email).Msg("failed to roll back account after template error")
		}
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.RegistrationsTotal.WithLabelValues(metrics.RegistrationCreated).Inc()
	s.log.Info().Str("email", created.Email).Int("template_version", s.format.Version).Msg("account registered")

	created.TemplateVersion = s.format.Version
	return created, nil
}

// LoginPassword authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) LoginPassword(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModePassword, metrics.ResultRejected).Inc()
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.hasher.Verify(dummyHash, password)
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModePassword, metrics.ResultRejected).Inc()
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModePassword, metrics.ResultError).Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(account.PasswordHash, password) {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModePassword, metrics.ResultRejected).Inc()
		return nil, domain.ErrInvalidCredentials
	}

	result, err := s.establish(ctx, account, metrics.ModePassword)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("email", account.Email).Str("mode", metrics.ModePassword).Msg("login succeeded")
	return result, nil
}

// LoginFace authenticates by matching image against every enrolled template.
// A missing face and an unknown face both surface as domain.ErrNoMatch.
func (s *AuthService) LoginFace(ctx context.Context, image io.Reader) (*ports.LoginResult, error) {
	if image == nil {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultRejected).Inc()
		return nil, domain.ErrNoMatch
	}

	probe, err := s.extractor.Extract(image)
	if err != nil {
		if errors.Is(err, domain.ErrNotDetected) {
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultRejected).Inc()
			s.log.Info().Err(err).Msg("face login rejected: face not detected")
			return nil, fmt.Errorf("%w: %w", domain.ErrNoMatch, err)
		}
		if errors.Is(err, domain.ErrInvalidImage) {
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultRejected).Inc()
		} else {
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultError).Inc()
		}
		return nil, err
	}

	match, err := s.matcher.FindMatch(ctx, probe, s.format.Threshold)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultError).Inc()
		return nil, fmt.Errorf("face login: %w", err)
	}
	if match.Compared > 0 {
		metrics.FaceMatchDistance.Observe(match.Distance)
	}

	if !match.Matched {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultRejected).Inc()
		s.log.Info().
			Float64("best_distance", match.Distance).
			Float64("threshold", s.format.Threshold).
			Int("compared", match.Compared).
			Msg("face login rejected: no match")
		return nil, domain.ErrNoMatch
	}

	account, err := s.accounts.FindByEmail(ctx, match.Email)
	if err != nil {
		// The account can disappear between the scan and this read.
		if errors.Is(err, domain.ErrAccountNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultRejected).Inc()
			return nil, domain.ErrNoMatch
		}
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ModeFace, metrics.ResultError).Inc()
		return nil, fmt.Errorf("face login: %w", err)
	}

	result, err := s.establish(ctx, account, metrics.ModeFace)
	if err != nil {
		return nil, err
	}
	result.Distance = match.Distance

	logEvt := s.log.Info()
	if match.Ambiguous {
		logEvt = s.log.Warn()
	}
	logEvt.
		Str("email", account.Email).
		Float64("distance", match.Distance).
		Bool("ambiguous", match.Ambiguous).
		Int("compared", match.Compared).
		Msg("face login succeeded")
	return result, nil
}

// Logout revokes the session the request is acting under.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrSessionNotFound
	}
	return s.sessions.Revoke(ctx, session.ID)
}

// CurrentAccount loads the account behind session.
func (s *AuthService) CurrentAccount(ctx context.Context, session *domain.Session) (*domain.Account, error) {
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s.accounts.FindByEmail(ctx, session.Email)
}

func (s *AuthService) establish(ctx context.Context, account *domain.Account, mode string) (*ports.LoginResult, error) {
	token, session, err := s.sessions.Establish(ctx, account)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(mode, metrics.ResultError).Inc()
		return nil, fmt.Errorf("login: %w", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues(mode, metrics.ResultSuccess).Inc()
	return &ports.LoginResult{Token: token, Account: account, Session: session}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
