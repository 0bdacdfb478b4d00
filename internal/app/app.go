package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
)

const (
	defaultPageSize = 10
	allRows         = -1
)

func utcNow() time.Time {
	return time.Now().UTC()
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limite"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// normalizePage applies the listing defaults. A limit of -1 returns every row.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit == 0 || limit < allRows {
		limit = defaultPageSize
	}
	return page, limit
}

func newPagination(page, limit, total int) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	switch {
	case total == 0:
		p.TotalPages = 0
	case limit <= 0:
		p.TotalPages = 1
	default:
		p.TotalPages = (total + limit - 1) / limit
	}
	return p
}

func requireRole(actor access.Actor, roles ...user.Role) error {
	if actor.Is(roles...) {
		return nil
	}
	return common.NewError(common.CodeForbidden, "insufficient role", nil)
}

func requireText(fields map[string]string, key, value, message string) {
	if strings.TrimSpace(value) == "" {
		fields[key] = message
	}
}

// notifier sends template emails. Best-effort sends log failures and carry on.
type notifier struct {
	mailer mail.Sender
	logger *zap.Logger
}

func newNotifier(mailer mail.Sender, logger *zap.Logger) notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return notifier{mailer: mailer, logger: logger}
}

func (n notifier) send(ctx context.Context, to user.User, template mail.TemplateID, params map[string]any) error {
	if n.mailer == nil {
		return mail.ErrNotConfigured
	}
	return n.mailer.SendTemplate(ctx, []mail.Recipient{{Email: to.Email, Name: to.FullName()}}, template, params)
}

func (n notifier) bestEffort(ctx context.Context, to user.User, template mail.TemplateID, params map[string]any) {
	if err := n.send(ctx, to, template, params); err != nil {
		n.logger.Warn("email not sent",
			zap.String("user_id", to.ID.String()),
			zap.Int("template", int(template)),
			zap.Error(err))
	}
}

func mailError(err error) error {
	switch {
	case errors.Is(err, mail.ErrNotConfigured):
		return common.NewError(common.CodeInternal, "mail provider not configured", err)
	case errors.Is(err, mail.ErrRateLimited):
		return common.NewError(common.CodeRateLimited, "mail provider rate limited", err)
	case errors.Is(err, mail.ErrBadRequest):
		return common.NewError(common.CodeValidation, "email could not be sent to this address", err)
	default:
		return common.NewError(common.CodeUpstream, "failed to send email", err)
	}
}
