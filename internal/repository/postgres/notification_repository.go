package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/notification"
	"admissions/internal/domain/user"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification, recipients []common.UUID, methods []string) error {
	if n.ID.IsZero() {
		n.ID = common.NewUUID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notifications (id, titre, contenu, type, audience, programme_ids, expediteur_id, cree_a)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			n.ID, n.Title, n.Content, n.Type, n.Audience, uuidArray(n.ProgramIDs), nullUUID(n.SenderID), n.CreatedAt)
		if err != nil {
			return wrapError(err, "create notification")
		}
		for _, recipient := range recipients {
			_, err := tx.ExecContext(ctx, `INSERT INTO notification_destinataires (id, notification_id, utilisateur_id, methodes)
				VALUES ($1, $2, $3, $4) ON CONFLICT (notification_id, utilisateur_id) DO NOTHING`,
				common.NewUUID(), n.ID, recipient, pq.Array(nonNil(methods)))
			if err != nil {
				return wrapError(err, "store notification recipient")
			}
		}
		return nil
	})
}

func (r *NotificationRepository) ListInbox(ctx context.Context, userID common.UUID, filter notification.InboxFilter) ([]notification.Inbox, error) {
	w := &where{}
	w.and("nd.utilisateur_id = " + w.arg(userID))
	if filter.Read != nil {
		w.and("nd.lue = " + w.arg(*filter.Read))
	}
	if filter.Type != "" {
		w.and("n.type = " + w.arg(filter.Type))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = notification.DefaultInboxLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT n.id, n.titre, n.contenu, n.type, n.cree_a, nd.lue, nd.lue_a
		FROM notification_destinataires nd JOIN notifications n ON n.id = nd.notification_id`+w.String()+`
		ORDER BY n.cree_a DESC LIMIT `+w.arg(limit), w.args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list notifications", err)
	}
	defer rows.Close()
	items := []notification.Inbox{}
	for rows.Next() {
		var item notification.Inbox
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &item.Type, &item.CreatedAt, &item.Read, &item.ReadAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan notification", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID common.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notification_destinataires SET lue = TRUE, lue_a = COALESCE(lue_a, $1)
		WHERE utilisateur_id = $2 AND notification_id = $3`, at, userID, notificationID)
	if err != nil {
		return wrapError(err, "mark notification read")
	}
	return expectAffected(result, "notification")
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID common.UUID, at time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notification_destinataires SET lue = TRUE, lue_a = $1 WHERE utilisateur_id = $2 AND lue = FALSE`, at, userID)
	if err != nil {
		return 0, wrapError(err, "mark notifications read")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

func (r *NotificationRepository) ListDeliveries(ctx context.Context) ([]notification.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT n.id, n.titre, n.contenu, n.type, n.audience, n.programme_ids, n.expediteur_id, n.cree_a,
		COUNT(nd.id), COUNT(nd.id) FILTER (WHERE nd.lue)
		FROM notifications n LEFT JOIN notification_destinataires nd ON nd.notification_id = n.id
		GROUP BY n.id ORDER BY n.cree_a DESC`)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list notifications", err)
	}
	defer rows.Close()
	items := []notification.Delivery{}
	for rows.Next() {
		var d notification.Delivery
		var programIDs []string
		var sender sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Type, &d.Audience, pq.Array(&programIDs), &sender, &d.CreatedAt,
			&d.Recipients, &d.Read); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan notification", err)
		}
		d.ProgramIDs = toUUIDs(programIDs)
		d.SenderID = common.UUID(sender.String)
		d.Unread = d.Recipients - d.Read
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *NotificationRepository) Delete(ctx context.Context, id common.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return wrapError(err, "delete notification")
	}
	return expectAffected(result, "notification")
}

var audienceRoles = map[notification.Audience]user.Role{
	notification.AudienceCandidates:   user.RoleCandidate,
	notification.AudienceCoordinators: user.RoleCoordinator,
	notification.AudienceExaminers:    user.RoleExaminer,
	notification.AudienceAdmins:       user.RoleAdmin,
}

// ResolveAudience returns the active users an audience targets. Specific
// programs reach their candidates and the coordinators assigned to them.
func (r *NotificationRepository) ResolveAudience(ctx context.Context, audience notification.Audience, programIDs []common.UUID) ([]common.UUID, error) {
	var query string
	var args []any
	switch audience {
	case notification.AudienceAll:
		query = `SELECT id FROM users WHERE statut = $1`
		args = []any{user.StatusActive}
	case notification.AudienceSpecificPrograms:
		query = `SELECT u.id FROM users u WHERE u.statut = $1 AND u.id IN (
			SELECT c.candidat_id FROM candidatures c WHERE c.programme_id = ANY($2::uuid[]) AND c.statut <> $3
			UNION
			SELECT cp.coordinateur_id FROM coordinator_programs cp WHERE cp.programme_id = ANY($2::uuid[]))`
		args = []any{user.StatusActive, uuidArray(programIDs), candidature.StatusWithdrawn}
	default:
		role, ok := audienceRoles[audience]
		if !ok {
			return nil, common.NewValidationError("unknown audience", map[string]string{"audience": string(audience)})
		}
		query = `SELECT id FROM users WHERE statut = $1 AND role = $2`
		args = []any{user.StatusActive, role}
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to resolve audience", err)
	}
	defer rows.Close()
	ids := []common.UUID{}
	for rows.Next() {
		var id common.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan recipient", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
