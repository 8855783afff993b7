package repository

import (
	"context"
	"strings"

	"github.com/emadn88/elmcorner/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	where, args := buildConditions(filter)

	query := `SELECT id, actor_type, actor_id, action, target_type, target_id,
		metadata, ip_address, user_agent, created_at
		FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit+1)
	}

	var logs []*domain.AuditLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func buildConditions(filter domain.ListFilter) ([]string, []any) {
	var (
		where []string
		args  []any
	)

	actions := make([]string, 0, len(filter.Actions))
	for _, action := range filter.Actions {
		if action = strings.TrimSpace(action); action != "" {
			actions = append(actions, action)
		}
	}
	switch len(actions) {
	case 0:
	case 1:
		where = append(where, "action = ?")
		args = append(args, actions[0])
	default:
		where = append(where, "action IN ?")
		args = append(args, actions)
	}

	if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
		where = append(where, "target_type = ?")
		args = append(args, targetType)
	}
	if targetID := strings.TrimSpace(filter.TargetID); targetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, targetID)
	}
	if actorType := strings.TrimSpace(filter.ActorType); actorType != "" {
		where = append(where, "actor_type = ?")
		args = append(args, actorType)
	}
	if filter.StartAt != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.EndAt.UTC())
	}
	// Snowflake ids are time ordered.
	if filter.BeforeID != 0 {
		where = append(where, "id < ?")
		args = append(args, filter.BeforeID)
	}
	return where, args
}
