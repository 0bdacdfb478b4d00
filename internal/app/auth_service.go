package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"admissions/internal/common"
	"admissions/internal/domain/auth"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
	"admissions/internal/security"
)

const (
	minPasswordLength = 8
	resetTokenTTL     = 24 * time.Hour
)

// AuthService handles registration, sessions and password recovery.
type AuthService struct {
	users         user.Repository
	refreshTokens auth.RefreshTokenRepository
	jwtProvider   *security.JWTProvider
	notifier      notifier
	logger        *zap.Logger
	accessTTL     time.Duration
	refreshTTL    time.Duration
	frontendURL   string
	now           func() time.Time
}

func NewAuthService(users user.Repository, refreshTokens auth.RefreshTokenRepository, jwtProvider *security.JWTProvider, mailer mail.Sender, logger *zap.Logger, accessTTL, refreshTTL time.Duration, frontendURL string) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		jwtProvider:   jwtProvider,
		notifier:      newNotifier(mailer, logger),
		logger:        logger,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		now:           utcNow,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register creates a pending candidate account and mails the verification link.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*auth.Session, error) {
	email := normalizeEmail(input.Email)
	fields := map[string]string{}
	if !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		fields["motDePasse"] = "password must be at least 8 characters"
	}
	requireText(fields, "prenom", input.FirstName, "first name is required")
	requireText(fields, "nom", input.LastName, "last name is required")
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid registration", fields)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, common.NewError(common.CodeConflict, "email already in use", nil)
	} else if !common.Is(err, common.CodeNotFound) {
		return nil, err
	}
	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to hash password", err)
	}
	token, err := security.RandomToken()
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to generate verification token", err)
	}
	account := &user.Account{
		User: user.User{
			ID:                    common.NewUUID(),
			Email:                 email,
			PasswordHash:          hash,
			FirstName:             strings.TrimSpace(input.FirstName),
			LastName:              strings.TrimSpace(input.LastName),
			Phone:                 strings.TrimSpace(input.Phone),
			Role:                  user.RoleCandidate,
			Status:                user.StatusPending,
			VerificationTokenHash: security.HashToken(token),
		},
		Candidate: &user.CandidateProfile{Country: user.DefaultCountry},
	}
	if err := s.users.Create(ctx, account); err != nil {
		return nil, err
	}
	if err := s.sendVerification(ctx, account.User, token); err != nil {
		return nil, err
	}
	pair, err := s.issueTokens(ctx, &account.User)
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidate registered", zap.String("user_id", account.ID.String()))
	return &auth.Session{Tokens: *pair, Account: account}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return nil, common.NewError(common.CodeUnauthorized, "invalid credentials", nil)
		}
		return nil, err
	}
	if !security.CheckPassword(u.PasswordHash, password) {
		return nil, common.NewError(common.CodeUnauthorized, "invalid credentials", nil)
	}
	switch u.Status {
	case user.StatusPending:
		return nil, common.NewError(common.CodeValidation, "veuillez vérifier votre email", nil)
	case user.StatusInactive:
		return nil, common.NewError(common.CodeUnauthorized, "compte désactivé", nil)
	}
	now := s.now()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	account, err := s.users.GetAccount(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return &auth.Session{Tokens: *pair, Account: account}, nil
}

// Refresh rotates the pair. The presented token is revoked before a new one is
// issued.
func (s *AuthService) Refresh(ctx context.Context, token string) (*auth.Session, error) {
	stored, err := s.refreshTokens.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return nil, common.NewError(common.CodeUnauthorized, "invalid refresh token", nil)
		}
		return nil, err
	}
	if !stored.Usable(s.now()) {
		return nil, common.NewError(common.CodeUnauthorized, "refresh token expired or revoked", nil)
	}
	account, err := s.users.GetAccount(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if account.Status != user.StatusActive {
		return nil, common.NewError(common.CodeUnauthorized, "account is not active", nil)
	}
	if err := s.refreshTokens.Revoke(ctx, stored.Token, s.now()); err != nil {
		return nil, err
	}
	pair, err := s.issueTokens(ctx, &account.User)
	if err != nil {
		return nil, err
	}
	return &auth.Session{Tokens: *pair, Account: account}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return common.NewValidationError("refresh token is required", map[string]string{"refreshToken": "required"})
	}
	if err := s.refreshTokens.Revoke(ctx, strings.TrimSpace(token), s.now()); err != nil {
		return err
	}
	s.logger.Info("user logged out")
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.users.GetByVerificationToken(ctx, security.HashToken(strings.TrimSpace(token)))
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return common.NewError(common.CodeValidation, "invalid verification token", nil)
		}
		return err
	}
	u.EmailVerified = true
	u.Status = user.StatusActive
	u.VerificationTokenHash = ""
	return s.users.Update(ctx, u)
}

func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return common.NewError(common.CodeValidation, "email already verified", nil)
	}
	token, err := security.RandomToken()
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to generate verification token", err)
	}
	u.VerificationTokenHash = security.HashToken(token)
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	return s.sendVerification(ctx, *u, token)
}

// ForgotPassword succeeds for unknown addresses so callers cannot probe which
// emails are registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return nil
		}
		return err
	}
	token, err := security.RandomToken()
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to generate reset token", err)
	}
	expiresAt := s.now().Add(resetTokenTTL)
	u.ResetTokenHash = security.HashToken(token)
	u.ResetTokenExpiresAt = &expiresAt
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	params := map[string]any{
		"prenom":    u.FirstName,
		"resetLink": s.frontendURL + "/reset-password?token=" + token,
	}
	if err := s.notifier.send(ctx, *u, mail.TemplatePasswordReset, params); err != nil {
		s.logger.Error("password reset email failed", zap.String("user_id", u.ID.String()), zap.Error(err))
		return mailError(err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return common.NewValidationError("invalid password", map[string]string{"motDePasse": "password must be at least 8 characters"})
	}
	u, err := s.users.GetByResetToken(ctx, security.HashToken(strings.TrimSpace(token)))
	if err != nil {
		if common.Is(err, common.CodeNotFound) {
			return common.NewError(common.CodeValidation, "invalid or expired reset token", nil)
		}
		return err
	}
	if u.ResetTokenExpiresAt == nil || !u.ResetTokenExpiresAt.After(s.now()) {
		return common.NewError(common.CodeValidation, "invalid or expired reset token", nil)
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to hash password", err)
	}
	u.PasswordHash = hash
	u.ResetTokenHash = ""
	u.ResetTokenExpiresAt = nil
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	return s.refreshTokens.RevokeAll(ctx, u.ID, s.now())
}

func (s *AuthService) Me(ctx context.Context, userID common.UUID) (*user.Account, error) {
	return s.users.GetAccount(ctx, userID)
}

func (s *AuthService) sendVerification(ctx context.Context, u user.User, token string) error {
	params := map[string]any{
		"prenom":           u.FirstName,
		"verificationLink": s.frontendURL + "/verify-email?token=" + token,
	}
	if err := s.notifier.send(ctx, u, mail.TemplateVerification, params); err != nil {
		s.logger.Error("verification email failed", zap.String("user_id", u.ID.String()), zap.Error(err))
		return mailError(err)
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, account *user.User) (*auth.TokenPair, error) {
	accessToken, expiresAt, err := s.jwtProvider.Generate(account.ID, account.Email, account.Role, s.accessTTL)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to generate access token", err)
	}
	refreshValue, err := security.RandomToken()
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to generate refresh token", err)
	}
	now := s.now()
	refresh := auth.RefreshToken{
		ID:        common.NewUUID(),
		UserID:    account.ID,
		Token:     refreshValue,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.refreshTokens.Store(ctx, refresh); err != nil {
		return nil, err
	}
	return &auth.TokenPair{AccessToken: accessToken, RefreshToken: refreshValue, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
