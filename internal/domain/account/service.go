// Package account serves the authentication endpoints: OTP delivery,
// password and OTP login, patient self-registration and the caller profile.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinichub/clinichub/internal/domain/identity"
	"github.com/clinichub/clinichub/internal/platform/apperr"
	"github.com/clinichub/clinichub/internal/platform/auth"
	"github.com/clinichub/clinichub/internal/platform/otp"
)

// Directory is the part of the identity service authentication needs.
type Directory interface {
	FindActiveByLogin(ctx context.Context, login string) (*identity.User, error)
	FindActiveByPhone(ctx context.Context, phone string) (*identity.User, error)
	CreatePatient(ctx context.Context, p *identity.Patient, password string) error
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
	PatientByUser(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	ProviderByUser(ctx context.Context, userID uuid.UUID) (*identity.Provider, error)
}

// Codes is the OTP contract plus the one-shot verification mark used by
// registration.
type Codes interface {
	otp.Provider
	ConsumeVerification(ctx context.Context, phone string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID, role string) (string, time.Time, error)
}

// Token is the body returned by every successful login.
type Token struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *identity.User `json:"user"`
}

// Profile describes the caller. Profile ids are set for the roles that have
// one.
type Profile struct {
	*identity.User
	PatientID  *uuid.UUID `json:"patient_id,omitempty"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
}

// Registration is a patient signing themselves up.
type Registration struct {
	Phone        string
	Password     string
	FirstName    string
	LastName     string
	NationalCode *string
	Email        *string
	Code         string
}

type Service struct {
	users  Directory
	codes  Codes
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(users Directory, codes Codes, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{users: users, codes: codes, tokens: tokens, logger: logger.With().Str("component", "account").Logger()}
}

var errInvalidCredentials = apperr.Unauthorized("invalid credentials")

func (s *Service) issue(u *identity.User) (*Token, error) {
	tok, exp, err := s.tokens.Issue(u.ID.String(), u.Role)
	if err != nil {
		return nil, err
	}
	return &Token{Token: tok, ExpiresAt: exp, User: u}, nil
}

func requirePhone(phone string) (string, error) {
	phone = identity.NormalizePhone(phone)
	if phone == "" {
		return "", apperr.Validation("phone is required")
	}
	return phone, nil
}

func (s *Service) SendOTP(ctx context.Context, phone string) error {
	phone, err := requirePhone(phone)
	if err != nil {
		return err
	}
	return s.codes.Send(ctx, phone)
}

func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (bool, error) {
	phone, err := requirePhone(phone)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(code) == "" {
		return false, apperr.Validation("code is required")
	}
	return s.codes.Verify(ctx, phone, strings.TrimSpace(code))
}

// LoginOTP verifies code and issues a token for the active user holding
// phone.
func (s *Service) LoginOTP(ctx context.Context, phone, code string) (*Token, error) {
	ok, err := s.VerifyOTP(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Unauthorized("invalid or expired code")
	}
	u, err := s.users.FindActiveByPhone(ctx, phone)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("no active account for this phone")
	}
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login authenticates by email or phone and password. Unknown, inactive and
// password-less users all get the same answer.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	u, err := s.users.FindActiveByLogin(ctx, username)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == nil || !auth.CheckPassword(*u.PasswordHash, password) {
		s.logger.Info().Str("user_id", u.ID.String()).Msg("password login rejected")
		return nil, errInvalidCredentials
	}
	return s.issue(u)
}

// Register creates a patient account. The phone must be proven either by
// code or by an earlier successful verify-otp call.
func (s *Service) Register(ctx context.Context, r Registration) (*Token, error) {
	phone, err := requirePhone(r.Phone)
	if err != nil {
		return nil, err
	}
	if len(r.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	var verified bool
	if code := strings.TrimSpace(r.Code); code != "" {
		verified, err = s.codes.Verify(ctx, phone, code)
	} else {
		verified, err = s.codes.ConsumeVerification(ctx, phone)
	}
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, apperr.Validation("phone is not verified")
	}

	p := &identity.Patient{User: &identity.User{
		Phone:        phone,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		NationalCode: r.NationalCode,
		Email:        r.Email,
	}}
	if err := s.users.CreatePatient(ctx, p, r.Password); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", p.User.ID.String()).Msg("patient registered")
	return s.issue(p.User)
}

// Me returns the caller with its profile ids.
func (s *Service) Me(ctx context.Context) (*Profile, error) {
	id, ok := auth.UserUUIDFromContext(ctx)
	if !ok {
		return nil, apperr.Unauthorized("authentication required")
	}
	u, err := s.users.GetUser(ctx, id)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, err
	}
	prof := &Profile{User: u}
	switch u.Role {
	case auth.RolePatient:
		if p, err := s.users.PatientByUser(ctx, id); err == nil {
			prof.PatientID = &p.ID
		} else if !apperr.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	case auth.RoleProvider:
		if p, err := s.users.ProviderByUser(ctx, id); err == nil {
			prof.ProviderID = &p.ID
		} else if !apperr.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	return prof, nil
}
