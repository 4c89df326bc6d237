package types

import (
	"context"
	"time"
)

// BaseModel is embedded by every persisted domain model
// Any changes to this model should be reflected in the migrations
type BaseModel struct {
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
}

func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		Status:    StatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: GetUserID(ctx),
		UpdatedBy: GetUserID(ctx),
	}
}

// Touch stamps the model as updated by the operator in ctx
func (b *BaseModel) Touch(ctx context.Context, now time.Time) {
	b.UpdatedAt = now.UTC()
	b.UpdatedBy = GetUserID(ctx)
}
