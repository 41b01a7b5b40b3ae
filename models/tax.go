package models

import (
	"context"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesTax is one tax rate posting to one liability account. A composite
// tax is a parent row whose components reference it through ParentTaxId;
// the parent's rate is the sum of its components'.
type SalesTax struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CompanyId   string          `gorm:"size:64;index;not null" json:"company_id" validate:"required"`
	Name        string          `gorm:"size:100;not null" json:"name" validate:"required"`
	Rate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	AccountId   int             `gorm:"not null" json:"account_id"`
	ParentTaxId int             `gorm:"index;default:0" json:"parent_tax_id"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesTax struct {
	Name       string                 `json:"name" validate:"required"`
	Rate       decimal.Decimal        `json:"rate"`
	AccountId  int                    `json:"account_id"`
	Components []NewSalesTaxComponent `json:"components" validate:"dive"`
}

type NewSalesTaxComponent struct {
	Name      string          `json:"name" validate:"required"`
	Rate      decimal.Decimal `json:"rate"`
	AccountId int             `json:"account_id" validate:"required"`
}

func CreateSalesTax(ctx context.Context, input *NewSalesTax) (*SalesTax, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[SalesTax](ctx, companyId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if len(input.Components) == 0 && input.AccountId == 0 {
		return nil, utils.NewValidationError("account_id", "required for a non-composite tax")
	}

	db := config.GetDB()
	tx := db.Begin()

	rate := input.Rate
	if len(input.Components) > 0 {
		rate = decimal.Zero
		for _, component := range input.Components {
			rate = rate.Add(component.Rate)
		}
	}
	tax := SalesTax{
		CompanyId: companyId,
		Name:      input.Name,
		Rate:      rate,
		AccountId: input.AccountId,
	}
	if err := tx.WithContext(ctx).Create(&tax).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, component := range input.Components {
		row := SalesTax{
			CompanyId:   companyId,
			Name:        component.Name,
			Rate:        component.Rate,
			AccountId:   component.AccountId,
			ParentTaxId: tax.ID,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &tax, nil
}

func GetSalesTax(ctx context.Context, id int) (*SalesTax, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	return utils.FetchModel[SalesTax](ctx, companyId, id)
}

// GetTaxComponents returns the component rows of a composite tax, or the
// tax itself when it has none.
func GetTaxComponents(ctx context.Context, companyId string, taxId int) ([]SalesTax, error) {
	return GetTaxComponentsTx(ctx, config.GetDB(), companyId, taxId)
}

// GetTaxComponentsTx is GetTaxComponents reading through the caller's
// transaction, for engines that already hold one open.
func GetTaxComponentsTx(ctx context.Context, tx *gorm.DB, companyId string, taxId int) ([]SalesTax, error) {
	var components []SalesTax
	err := tx.WithContext(ctx).
		Where("company_id = ? AND parent_tax_id = ?", companyId, taxId).
		Order("id").Find(&components).Error
	if err != nil {
		return nil, err
	}
	if len(components) > 0 {
		return components, nil
	}
	var tax SalesTax
	if err := tx.WithContext(ctx).
		Where("company_id = ?", companyId).
		First(&tax, taxId).Error; err != nil {
		return nil, utils.NewNotFoundError("SalesTax", taxId)
	}
	return []SalesTax{tax}, nil
}
