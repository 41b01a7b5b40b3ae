package models

import (
	"context"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentApplication links a funding transaction to an obligation it paid
// down. It is the sole source of truth for consumption; balances and
// statuses are derived from these rows, never from ledger descriptions.
// Both sides are weak references: during reversal a counterpart may already
// be gone and the row is simply cleaned up.
type PaymentApplication struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CompanyId     string          `gorm:"size:64;index;not null" json:"company_id"`
	PaymentId     int             `gorm:"index;not null" json:"payment_id"`
	InvoiceId     int             `gorm:"index;not null" json:"invoice_id"`
	AmountApplied decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_applied"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetApplicationsByPayment(ctx context.Context, paymentId int) ([]PaymentApplication, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	return applicationsByPaymentTx(ctx, config.GetDB(), companyId, paymentId)
}

func GetApplicationsByInvoice(ctx context.Context, invoiceId int) ([]PaymentApplication, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	return applicationsByInvoiceTx(ctx, config.GetDB(), companyId, invoiceId)
}

func applicationsByPaymentTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int) ([]PaymentApplication, error) {
	var applications []PaymentApplication
	err := tx.WithContext(ctx).
		Where("company_id = ? AND payment_id = ?", companyId, paymentId).
		Order("id").Find(&applications).Error
	return applications, err
}

func applicationsByInvoiceTx(ctx context.Context, tx *gorm.DB, companyId string, invoiceId int) ([]PaymentApplication, error) {
	var applications []PaymentApplication
	err := tx.WithContext(ctx).
		Where("company_id = ? AND invoice_id = ?", companyId, invoiceId).
		Order("id").Find(&applications).Error
	return applications, err
}

// ApplicationsByPaymentTx and ApplicationsByInvoiceTx are the in-transaction
// accessors the workflow engines use.
func ApplicationsByPaymentTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int) ([]PaymentApplication, error) {
	return applicationsByPaymentTx(ctx, tx, companyId, paymentId)
}

func ApplicationsByInvoiceTx(ctx context.Context, tx *gorm.DB, companyId string, invoiceId int) ([]PaymentApplication, error) {
	return applicationsByInvoiceTx(ctx, tx, companyId, invoiceId)
}

// SumApplicationsForInvoiceTx totals everything applied against one
// obligation.
func SumApplicationsForInvoiceTx(ctx context.Context, tx *gorm.DB, companyId string, invoiceId int) (decimal.Decimal, error) {
	return sumApplications(ctx, tx, companyId, "invoice_id = ?", invoiceId)
}

// SumApplicationsForPaymentTx totals everything one funding transaction has
// supplied.
func SumApplicationsForPaymentTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int) (decimal.Decimal, error) {
	return sumApplications(ctx, tx, companyId, "payment_id = ?", paymentId)
}

// SumApplicationsForPaymentExcludingInvoiceTx totals a funding transaction's
// allocations to every obligation except one; reversal uses it to recompute
// a funding balance while that obligation is being deleted.
func SumApplicationsForPaymentExcludingInvoiceTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int, excludeInvoiceId int) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.WithContext(ctx).Model(&PaymentApplication{}).
		Where("company_id = ? AND payment_id = ? AND invoice_id <> ?", companyId, paymentId, excludeInvoiceId).
		Select("SUM(amount_applied)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func sumApplications(ctx context.Context, tx *gorm.DB, companyId string, cond string, arg any) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.WithContext(ctx).Model(&PaymentApplication{}).
		Where("company_id = ?", companyId).Where(cond, arg).
		Select("SUM(amount_applied)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
