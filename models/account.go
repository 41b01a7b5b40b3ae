package models

import (
	"context"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"gorm.io/gorm"
)

// Account is one chart-of-accounts entry. SystemCode marks the accounts the
// posting engine resolves by role (AR, AP, UF) rather than by id.
type Account struct {
	ID         int         `gorm:"primary_key" json:"id"`
	CompanyId  string      `gorm:"size:64;index;not null;index:idx_account_code,priority:1" json:"company_id" validate:"required"`
	Code       string      `gorm:"size:20;not null;index:idx_account_code,priority:2" json:"code"`
	Name       string      `gorm:"size:100;not null" json:"name" validate:"required"`
	Type       AccountType `gorm:"size:20;not null" json:"type" validate:"required"`
	SystemCode string      `gorm:"size:10;index" json:"system_code"`
	IsActive   *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Code       string      `json:"code"`
	Name       string      `json:"name" validate:"required"`
	Type       AccountType `json:"type" validate:"required"`
	SystemCode string      `json:"system_code"`
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.Code != "" {
		if err := utils.ValidateUnique[Account](ctx, companyId, "code", input.Code, 0); err != nil {
			return nil, err
		}
	}

	account := Account{
		CompanyId:  companyId,
		Code:       input.Code,
		Name:       input.Name,
		Type:       input.Type,
		SystemCode: input.SystemCode,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	// new system accounts invalidate the cached role map
	if account.SystemCode != "" {
		if err := config.RemoveRedisKey(systemAccountsCacheKey(companyId)); err != nil {
			return nil, err
		}
	}
	return &account, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	return utils.FetchModel[Account](ctx, companyId, id)
}

func systemAccountsCacheKey(companyId string) string {
	return "systemAccounts:" + companyId
}

// GetSystemAccounts returns the systemCode => accountId map for a company,
// redis first, then db.
func GetSystemAccounts(ctx context.Context, companyId string) (map[string]int, error) {
	return GetSystemAccountsTx(ctx, config.GetDB(), companyId)
}

// GetSystemAccountsTx is GetSystemAccounts reading through the caller's
// transaction. Engines that hold an open transaction must use this variant:
// the test database allows a single connection, so a read through the global
// handle would wait on the connection the caller already owns.
func GetSystemAccountsTx(ctx context.Context, tx *gorm.DB, companyId string) (map[string]int, error) {
	systemAccounts := make(map[string]int)
	redisKey := systemAccountsCacheKey(companyId)
	exists, err := config.GetRedisObject(redisKey, &systemAccounts)
	if err != nil {
		return nil, err
	}
	if !exists {
		var accounts []Account
		if err := tx.WithContext(ctx).
			Where("company_id = ? AND system_code <> ''", companyId).
			Find(&accounts).Error; err != nil {
			return nil, err
		}
		for _, account := range accounts {
			systemAccounts[account.SystemCode] = account.ID
		}
		if err := config.SetRedisObject(redisKey, &systemAccounts, 0); err != nil {
			return nil, err
		}
	}
	return systemAccounts, nil
}

// RequireSystemAccount resolves a role account or fails with
// ConfigurationError.
func RequireSystemAccount(systemAccounts map[string]int, code string) (int, error) {
	id, ok := systemAccounts[code]
	if !ok || id == 0 {
		return 0, &utils.ConfigurationError{SystemCode: code}
	}
	return id, nil
}
