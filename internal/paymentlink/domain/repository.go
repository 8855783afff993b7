package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *Token) error
	FindActiveByBillID(ctx context.Context, db *gorm.DB, billID snowflake.ID) (*Token, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Token, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Token, error)
	Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, revokedAt time.Time) error
}
