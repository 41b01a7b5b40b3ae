package workflow

import (
	"context"
	"errors"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"gorm.io/gorm"
)

// DeleteTransaction removes a transaction and unwinds everything it touched:
// application rows go, counterpart balances are re-derived, consumed credits
// are restored, owned byproducts are removed. All inside one database
// transaction so a failure leaves the books untouched.
//
// Counterparts referenced by an application row may already be gone; those
// are logged and skipped rather than failing the whole reversal.
func DeleteTransaction(ctx context.Context, id int) error {
	companyId, err := companyIdFromContext(ctx)
	if err != nil {
		return err
	}

	db := config.GetDB()
	tx := db.Begin()

	transaction, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, id)
	if err != nil {
		tx.Rollback()
		return err
	}

	switch {
	case transaction.Type == models.TransactionTypeDeposit:
		if transaction.SourcePaymentId != 0 {
			tx.Rollback()
			return &utils.DependencyError{
				Entity:  "Deposit",
				Id:      id,
				OwnerId: transaction.SourcePaymentId,
			}
		}
		err = deleteFundingTx(ctx, tx, companyId, transaction)

	case transaction.Type.CreditSign() != 0:
		err = deleteFundingTx(ctx, tx, companyId, transaction)

	case transaction.Type.IsObligation():
		err = deleteObligationTx(ctx, tx, companyId, transaction)

	default:
		err = models.DeleteTransactionRowsTx(ctx, tx, companyId, id)
	}
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// deleteFundingTx unwinds a funding transaction: its allocations disappear,
// every obligation it funded is re-derived, credits it consumed get their
// value back and byproduct deposits are removed with it.
func deleteFundingTx(ctx context.Context, tx *gorm.DB, companyId string, transaction *models.Transaction) error {
	logger := config.GetLogger()
	correlationId := correlationIdFromContextOrNew(ctx)

	applications, err := models.ApplicationsByPaymentTx(ctx, tx, companyId, transaction.ID)
	if err != nil {
		return err
	}
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND payment_id = ?", companyId, transaction.ID).
		Delete(&models.PaymentApplication{}).Error; err != nil {
		return err
	}
	for _, application := range applications {
		err := RecalculateBalanceTx(ctx, tx, companyId, application.InvoiceId)
		if err != nil {
			var notFound *utils.NotFoundError
			if errors.As(err, &notFound) {
				config.LogWarn(logger, "reversal.go", "deleteFundingTx", correlationId,
					application.InvoiceId, "allocated obligation no longer exists, skipping")
				continue
			}
			return err
		}
	}

	if transaction.Type == models.TransactionTypePayment {
		if err := restoreConsumedCreditsTx(ctx, tx, companyId, transaction.ID); err != nil {
			return err
		}
		if err := deleteByproductDepositsTx(ctx, tx, companyId, transaction.ID); err != nil {
			return err
		}
	}
	return models.DeleteTransactionRowsTx(ctx, tx, companyId, transaction.ID)
}

// restoreConsumedCreditsTx hands back the value a payment drew from existing
// credits, identified by the tagged negative line items.
func restoreConsumedCreditsTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int) error {
	logger := config.GetLogger()
	correlationId := correlationIdFromContextOrNew(ctx)

	var items []models.LineItem
	err := tx.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ? AND source_credit_id > 0", companyId, paymentId).
		Find(&items).Error
	if err != nil {
		return err
	}
	for _, item := range items {
		err := RestoreCreditTx(ctx, tx, companyId, item.SourceCreditId, item.Amount.Neg())
		if err != nil {
			var notFound *utils.NotFoundError
			if errors.As(err, &notFound) {
				config.LogWarn(logger, "reversal.go", "restoreConsumedCreditsTx", correlationId,
					item.SourceCreditId, "consumed credit no longer exists, skipping restore")
				continue
			}
			return err
		}
	}
	return nil
}

// deleteByproductDepositsTx removes the system-generated deposits a payment
// owns. They never carry allocations of their own.
func deleteByproductDepositsTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int) error {
	var deposits []models.Transaction
	err := tx.WithContext(ctx).
		Where("company_id = ? AND source_payment_id = ?", companyId, paymentId).
		Find(&deposits).Error
	if err != nil {
		return err
	}
	for _, deposit := range deposits {
		if err := models.DeleteTransactionRowsTx(ctx, tx, companyId, deposit.ID); err != nil {
			return err
		}
	}
	return nil
}

// deleteObligationTx unwinds an invoice or bill: its application rows go
// and every funding source that paid it gets its leftover value back,
// re-derived from the remaining allocations.
func deleteObligationTx(ctx context.Context, tx *gorm.DB, companyId string, transaction *models.Transaction) error {
	logger := config.GetLogger()
	correlationId := correlationIdFromContextOrNew(ctx)

	applications, err := models.ApplicationsByInvoiceTx(ctx, tx, companyId, transaction.ID)
	if err != nil {
		return err
	}
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND invoice_id = ?", companyId, transaction.ID).
		Delete(&models.PaymentApplication{}).Error; err != nil {
		return err
	}

	seen := make(map[int]bool)
	for _, application := range applications {
		if seen[application.PaymentId] {
			continue
		}
		seen[application.PaymentId] = true
		err := RecalculateBalanceTx(ctx, tx, companyId, application.PaymentId)
		if err != nil {
			var notFound *utils.NotFoundError
			if errors.As(err, &notFound) {
				config.LogWarn(logger, "reversal.go", "deleteObligationTx", correlationId,
					application.PaymentId, "funding transaction no longer exists, skipping")
				continue
			}
			return err
		}
	}
	return models.DeleteTransactionRowsTx(ctx, tx, companyId, transaction.ID)
}
