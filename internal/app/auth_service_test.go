package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
	"admissions/internal/security"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeDB, *fakeRefreshTokens, *fakeMailer) {
	t.Helper()
	db := newFakeDB()
	tokens := newFakeRefreshTokens()
	mailer := &fakeMailer{}
	service := NewAuthService(fakeUsers{db: db}, tokens, security.NewJWTProvider("secret"), mailer, nil,
		15*time.Minute, 7*24*time.Hour, "https://admissions.example.com/")
	service.now = func() time.Time { return testNow }
	return service, db, tokens, mailer
}

func tokenFromLink(t *testing.T, sent sentMail, key string) string {
	t.Helper()
	link, _ := sent.params[key].(string)
	_, token, ok := strings.Cut(link, "token=")
	if !ok || token == "" {
		t.Fatalf("expected a token in %s, got %q", key, link)
	}
	return token
}

func register(t *testing.T, service *AuthService) {
	t.Helper()
	_, err := service.Register(context.Background(), RegisterInput{
		Email:     " Amina@Example.com ",
		Password:  "motdepasse",
		FirstName: "Amina",
		LastName:  "Benali",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRegisterSendsVerificationAndBlocksLogin(t *testing.T) {
	service, _, _, mailer := newTestAuthService(t)
	ctx := context.Background()
	register(t, service)

	sent, ok := mailer.last(mail.TemplateVerification)
	if !ok {
		t.Fatalf("expected a verification email")
	}
	if sent.to != "amina@example.com" {
		t.Fatalf("expected normalized recipient, got %q", sent.to)
	}
	if !strings.HasPrefix(sent.params["verificationLink"].(string), "https://admissions.example.com/verify-email?token=") {
		t.Fatalf("unexpected link %v", sent.params["verificationLink"])
	}

	_, err := service.Login(ctx, "amina@example.com", "motdepasse")
	if !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected pending login to be refused, got %v", err)
	}

	if err := service.VerifyEmail(ctx, tokenFromLink(t, sent, "verificationLink")); err != nil {
		t.Fatalf("verify: %v", err)
	}
	session, err := service.Login(ctx, "AMINA@example.com", "motdepasse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Account.Role != user.RoleCandidate || session.Account.Candidate == nil || session.Account.Candidate.Country != user.DefaultCountry {
		t.Fatalf("unexpected account %+v", session.Account)
	}
	if session.Account.LastLoginAt == nil || !session.Account.LastLoginAt.Equal(testNow) {
		t.Fatalf("expected last login recorded, got %v", session.Account.LastLoginAt)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _, _, _ := newTestAuthService(t)
	register(t, service)
	_, err := service.Register(context.Background(), RegisterInput{Email: "amina@example.com", Password: "motdepasse", FirstName: "A", LastName: "B"})
	if !common.Is(err, common.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	service, _, _, mailer := newTestAuthService(t)
	_, err := service.Register(context.Background(), RegisterInput{Email: "invalid", Password: "court"})
	var appErr *common.Error
	if !common.Is(err, common.CodeValidation) || !errors.As(err, &appErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"email", "motDePasse", "prenom", "nom"} {
		if _, ok := appErr.Fields[field]; !ok {
			t.Fatalf("expected field %s in %v", field, appErr.Fields)
		}
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email")
	}
}

func TestRegisterMailFailure(t *testing.T) {
	service, _, _, mailer := newTestAuthService(t)
	mailer.err = mail.ErrRateLimited
	_, err := service.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "motdepasse", FirstName: "A", LastName: "B"})
	if !common.Is(err, common.CodeRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	service, db, _, _ := newTestAuthService(t)
	ctx := context.Background()
	register(t, service)

	if _, err := service.Login(ctx, "amina@example.com", "mauvais"); !common.Is(err, common.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}
	if _, err := service.Login(ctx, "inconnu@example.com", "motdepasse"); !common.Is(err, common.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}

	u, _ := (fakeUsers{db: db}).GetByEmail(ctx, "amina@example.com")
	u.Status = user.StatusInactive
	if err := (fakeUsers{db: db}).Update(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := service.Login(ctx, "amina@example.com", "motdepasse"); !common.Is(err, common.CodeUnauthorized) {
		t.Fatalf("expected inactive account refused, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	service, _, tokens, mailer := newTestAuthService(t)
	ctx := context.Background()
	register(t, service)
	sent, _ := mailer.last(mail.TemplateVerification)
	if err := service.VerifyEmail(ctx, tokenFromLink(t, sent, "verificationLink")); err != nil {
		t.Fatalf("verify: %v", err)
	}
	session, err := service.Login(ctx, "amina@example.com", "motdepasse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := service.Refresh(ctx, session.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.Tokens.RefreshToken == session.Tokens.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}
	if _, err := service.Refresh(ctx, session.Tokens.RefreshToken); !common.Is(err, common.CodeUnauthorized) {
		t.Fatalf("expected reuse refused, got %v", err)
	}

	if err := service.Logout(ctx, rotated.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	stored, _ := tokens.GetByToken(ctx, rotated.Tokens.RefreshToken)
	if stored.RevokedAt == nil {
		t.Fatalf("expected logout to revoke the token")
	}
	if _, err := service.Refresh(ctx, "inconnu"); !common.Is(err, common.CodeUnauthorized) {
		t.Fatalf("expected unknown token refused, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	service, _, tokens, mailer := newTestAuthService(t)
	ctx := context.Background()
	register(t, service)
	verification, _ := mailer.last(mail.TemplateVerification)
	if err := service.VerifyEmail(ctx, tokenFromLink(t, verification, "verificationLink")); err != nil {
		t.Fatalf("verify: %v", err)
	}
	session, err := service.Login(ctx, "amina@example.com", "motdepasse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := service.ForgotPassword(ctx, "personne@example.com"); err != nil {
		t.Fatalf("expected unknown email to succeed silently, got %v", err)
	}
	if err := service.ForgotPassword(ctx, "amina@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	reset, ok := mailer.last(mail.TemplatePasswordReset)
	if !ok {
		t.Fatalf("expected reset email")
	}
	token := tokenFromLink(t, reset, "resetLink")

	if err := service.ResetPassword(ctx, token, "court"); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected short password refused, got %v", err)
	}
	if err := service.ResetPassword(ctx, token, "nouveaumotdepasse"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := service.ResetPassword(ctx, token, "encoreunautre"); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected used token refused, got %v", err)
	}
	stored, _ := tokens.GetByToken(ctx, session.Tokens.RefreshToken)
	if stored.RevokedAt == nil {
		t.Fatalf("expected sessions revoked after reset")
	}
	if _, err := service.Login(ctx, "amina@example.com", "nouveaumotdepasse"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestResetPasswordExpired(t *testing.T) {
	service, _, _, mailer := newTestAuthService(t)
	ctx := context.Background()
	register(t, service)
	if err := service.ForgotPassword(ctx, "amina@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	reset, _ := mailer.last(mail.TemplatePasswordReset)
	service.now = func() time.Time { return testNow.Add(25 * time.Hour) }

	if err := service.ResetPassword(ctx, tokenFromLink(t, reset, "resetLink"), "nouveaumotdepasse"); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected expired token refused, got %v", err)
	}
}

func TestResendVerificationWhenVerified(t *testing.T) {
	service, _, _, mailer := newTestAuthService(t)
	ctx := context.Background()
	register(t, service)
	sent, _ := mailer.last(mail.TemplateVerification)
	if err := service.ResendVerification(ctx, "amina@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if err := service.VerifyEmail(ctx, tokenFromLink(t, sent, "verificationLink")); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected superseded token refused, got %v", err)
	}
	latest, _ := mailer.last(mail.TemplateVerification)
	if err := service.VerifyEmail(ctx, tokenFromLink(t, latest, "verificationLink")); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := service.ResendVerification(ctx, "amina@example.com"); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected already verified, got %v", err)
	}
}
