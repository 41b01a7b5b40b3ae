package utils

import (
	"context"
	"reflect"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

// fetch model from db
// (ctx's company_id is used in query's WHERE, may return NotFoundError)
func FetchModel[T any](ctx context.Context, companyId string, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("company_id = ?", companyId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, NewNotFoundError(GetTypeName[T](), id)
	}
	return &result, nil
}

// FetchModelForUpdate reads a row inside tx with a row-level write lock.
// Concurrent payment applications against the same obligation serialize
// here; without the lock two of them could read the same stale balance and
// jointly over-apply.
func FetchModelForUpdate[T any](ctx context.Context, tx *gorm.DB, companyId string, id int) (*T, error) {
	dbCtx := tx.WithContext(ctx).Where("company_id = ?", companyId)
	dbCtx = LockForUpdate(dbCtx)
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, NewNotFoundError(GetTypeName[T](), id)
	}
	return &result, nil
}

// LockForUpdate adds FOR UPDATE on engines that support it. SQLite (used by
// package tests) serializes writers anyway and rejects the clause.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// fetch all models from db
// (ctx's company_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, companyId string, associations ...string) ([]*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("company_id = ?", companyId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateUnique checks column uniqueness within a company, excluding the
// row being updated (id = 0 for create).
func ValidateUnique[T any](ctx context.Context, companyId string, column string, value any, id int) error {
	db := config.GetDB()
	var model T
	var count int64
	dbCtx := db.WithContext(ctx).Model(&model).
		Where("company_id = ? AND "+column+" = ?", companyId, value)
	if id > 0 {
		dbCtx = dbCtx.Where("id <> ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return NewValidationError(column, "already in use")
	}
	return nil
}
