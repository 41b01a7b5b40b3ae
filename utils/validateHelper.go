package utils

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jaytrivedi1/vedo_books_backend/config"
)

var validate = validator.New()

// ValidateInput runs struct-tag validation on an input struct and converts
// the first failure into a ValidationError.
func ValidateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return NewValidationError(ve.Field(), ve.Tag())
	}
	return err
}

// ValidateResourceId checks a referenced row exists within the company scope.
func ValidateResourceId[T any](ctx context.Context, companyId string, id int) error {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).
		Where("company_id = ? AND id = ?", companyId, id).Count(&count).Error
	if err != nil {
		return err
	}
	if count <= 0 {
		return NewNotFoundError(GetTypeName[T](), id)
	}
	return nil
}
