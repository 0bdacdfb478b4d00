package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/notification"
	"admissions/internal/domain/user"
)

var deliveryMethods = []string{"APP"}

type NotificationService struct {
	notifications notification.Repository
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(notifications notification.Repository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notifications: notifications, logger: logger, now: utcNow}
}

func (s *NotificationService) ListMine(ctx context.Context, actor access.Actor, filter notification.InboxFilter) ([]notification.Inbox, error) {
	if filter.Type != "" && !filter.Type.IsKnown() {
		return nil, common.NewValidationError("invalid type", map[string]string{"type": "must be SYSTEME or REGULIERE"})
	}
	if filter.Limit <= 0 {
		filter.Limit = notification.DefaultInboxLimit
	}
	items, err := s.notifications.ListInbox(ctx, actor.ID, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []notification.Inbox{}
	}
	return items, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor access.Actor, id common.UUID) error {
	return s.notifications.MarkRead(ctx, actor.ID, id, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor access.Actor) (int, error) {
	return s.notifications.MarkAllRead(ctx, actor.ID, s.now())
}

type NotificationInput struct {
	Title      string
	Content    string
	Type       notification.Type
	Audience   notification.Audience
	ProgramIDs []common.UUID
}

// Create stores the notification with one recipient row per member of the
// audience.
func (s *NotificationService) Create(ctx context.Context, actor access.Actor, input NotificationInput) (*notification.Delivery, error) {
	if err := requireRole(actor, user.RoleAdmin); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	requireText(fields, "titre", input.Title, "title is required")
	requireText(fields, "contenu", input.Content, "content is required")
	if input.Type == "" {
		input.Type = notification.TypeRegular
	}
	if !input.Type.IsKnown() {
		fields["type"] = "must be SYSTEME or REGULIERE"
	}
	if !input.Audience.IsKnown() {
		fields["audience"] = "unknown audience"
	}
	if input.Audience == notification.AudienceSpecificPrograms && len(input.ProgramIDs) == 0 {
		fields["programmeIds"] = "programs are required for this audience"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid notification", fields)
	}
	if input.Audience != notification.AudienceSpecificPrograms {
		input.ProgramIDs = nil
	}

	recipients, err := s.notifications.ResolveAudience(ctx, input.Audience, input.ProgramIDs)
	if err != nil {
		return nil, err
	}
	n := &notification.Notification{
		ID:         common.NewUUID(),
		Title:      strings.TrimSpace(input.Title),
		Content:    strings.TrimSpace(input.Content),
		Type:       input.Type,
		Audience:   input.Audience,
		ProgramIDs: input.ProgramIDs,
		SenderID:   actor.ID,
		CreatedAt:  s.now(),
	}
	if err := s.notifications.Create(ctx, n, recipients, deliveryMethods); err != nil {
		return nil, err
	}
	s.logger.Info("notification sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("audience", string(n.Audience)),
		zap.Int("recipients", len(recipients)))
	return &notification.Delivery{Notification: *n, Recipients: len(recipients), Unread: len(recipients)}, nil
}

type NotificationStats struct {
	TotalSent       int            `json:"totalSent"`
	UnreadCount     int            `json:"unreadCount"`
	AverageReadRate float64        `json:"averageReadRate"`
	LastSent        *time.Time     `json:"lastSent,omitempty"`
	WeeklyCount     int            `json:"weeklyCount"`
	ByAudience      map[string]int `json:"byAudience"`
	ByType          map[string]int `json:"byType"`
}

type NotificationReport struct {
	Notifications []notification.Delivery `json:"notifications"`
	Stats         NotificationStats       `json:"stats"`
}

func (s *NotificationService) ListAdmin(ctx context.Context, actor access.Actor) (*NotificationReport, error) {
	if err := requireRole(actor, user.RoleAdmin); err != nil {
		return nil, err
	}
	deliveries, err := s.notifications.ListDeliveries(ctx)
	if err != nil {
		return nil, err
	}
	if deliveries == nil {
		deliveries = []notification.Delivery{}
	}
	return &NotificationReport{Notifications: deliveries, Stats: summarize(deliveries, s.now())}, nil
}

// summarize aggregates deliveries, which arrive newest first. Notifications
// without recipients count as unread.
func summarize(deliveries []notification.Delivery, now time.Time) NotificationStats {
	stats := NotificationStats{
		TotalSent:  len(deliveries),
		ByAudience: map[string]int{},
		ByType:     map[string]int{},
	}
	for _, audience := range notification.Audiences() {
		stats.ByAudience[string(audience)] = 0
	}
	stats.ByType[string(notification.TypeSystem)] = 0
	stats.ByType[string(notification.TypeRegular)] = 0

	weekAgo := now.Add(-7 * 24 * time.Hour)
	var rateSum float64
	for i, d := range deliveries {
		if i == 0 {
			last := d.CreatedAt
			stats.LastSent = &last
		}
		stats.UnreadCount += d.Unread
		if d.Recipients > 0 {
			rateSum += float64(d.Read) / float64(d.Recipients)
		}
		if d.CreatedAt.After(weekAgo) {
			stats.WeeklyCount++
		}
		stats.ByAudience[string(d.Audience)]++
		stats.ByType[string(d.Type)]++
	}
	if len(deliveries) > 0 {
		stats.AverageReadRate = rateSum / float64(len(deliveries))
	}
	return stats
}

func (s *NotificationService) Delete(ctx context.Context, actor access.Actor, id common.UUID) error {
	if err := requireRole(actor, user.RoleAdmin); err != nil {
		return err
	}
	if err := s.notifications.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("notification deleted", zap.String("notification_id", id.String()))
	return nil
}
