package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const tokenColumns = `id, bill_id, token_hash, order_id, provider, redirect_url, created_at, revoked_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *domain.Token) error {
	return db.WithContext(ctx).Create(token).Error
}

func (r *repo) FindActiveByBillID(ctx context.Context, db *gorm.DB, billID snowflake.ID) (*domain.Token, error) {
	if billID == 0 {
		return nil, nil
	}
	var row domain.Token
	if err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+`
		 FROM bill_payment_tokens
		 WHERE bill_id = ? AND revoked_at IS NULL
		 ORDER BY id DESC
		 LIMIT 1`,
		billID,
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.Token, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, nil
	}
	var row domain.Token
	if err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+`
		 FROM bill_payment_tokens
		 WHERE token_hash = ? AND revoked_at IS NULL
		 LIMIT 1`,
		tokenHash,
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Token, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	var row domain.Token
	if err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+`
		 FROM bill_payment_tokens
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, revokedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bill_payment_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		revokedAt,
		id,
	).Error
}
