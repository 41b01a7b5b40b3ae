package models

import (
	"context"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
)

type Contact struct {
	ID        int         `gorm:"primary_key" json:"id"`
	CompanyId string      `gorm:"size:64;index;not null" json:"company_id" validate:"required"`
	Name      string      `gorm:"size:100;not null" json:"name" validate:"required"`
	Type      ContactType `gorm:"size:20;not null" json:"type" validate:"required"`
	Email     string      `gorm:"size:100" json:"email"`
	IsActive  *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewContact struct {
	Name  string      `json:"name" validate:"required"`
	Type  ContactType `json:"type" validate:"required,oneof=Customer Vendor"`
	Email string      `json:"email" validate:"omitempty,email"`
}

func CreateContact(ctx context.Context, input *NewContact) (*Contact, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	contact := Contact{
		CompanyId: companyId,
		Name:      input.Name,
		Type:      input.Type,
		Email:     input.Email,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func GetContact(ctx context.Context, id int) (*Contact, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	return utils.FetchModel[Contact](ctx, companyId, id)
}

// ValidateContactAssociation checks the contact exists and matches the
// classification a transaction type expects (invoices bill customers,
// bills bill vendors).
func ValidateContactAssociation(ctx context.Context, companyId string, contactId int, want ContactType) error {
	contact, err := utils.FetchModel[Contact](ctx, companyId, contactId)
	if err != nil {
		return err
	}
	if contact.Type != want {
		return utils.NewValidationError("contact_id", "contact is not a "+string(want))
	}
	return nil
}
