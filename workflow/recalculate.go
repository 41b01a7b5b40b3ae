package workflow

import (
	"context"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecalculateBalanceTx rebuilds one transaction's balance and status from
// the payment application table. Idempotent: running it twice yields the
// same row. Obligations derive from what was applied against them, funding
// transactions from what they supplied.
func RecalculateBalanceTx(ctx context.Context, tx *gorm.DB, companyId string, id int) error {
	transaction, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, id)
	if err != nil {
		return err
	}

	var balance decimal.Decimal
	var status models.TransactionStatus

	switch {
	case transaction.Type.IsObligation():
		applied, err := models.SumApplicationsForInvoiceTx(ctx, tx, companyId, id)
		if err != nil {
			return err
		}
		balance = utils.Round2(transaction.Amount.Sub(applied))
		switch {
		case balance.LessThanOrEqual(completionThreshold):
			balance = decimal.Zero
			status = models.TransactionStatusPaid
		case applied.GreaterThan(completionThreshold):
			status = models.TransactionStatusPartial
		default:
			status = models.TransactionStatusOpen
		}

	case transaction.Type.CreditSign() != 0:
		bearing, err := isCreditBearingTx(ctx, tx, companyId, transaction)
		if err != nil {
			return err
		}
		if !bearing {
			return nil
		}
		capacity, err := fundingCapacityTx(ctx, tx, companyId, transaction)
		if err != nil {
			return err
		}
		supplied, err := models.SumApplicationsForPaymentTx(ctx, tx, companyId, id)
		if err != nil {
			return err
		}
		// draws by payments that consumed this credit are recorded as
		// tagged negative line items, not application rows
		drawn, err := creditDrawsTx(ctx, tx, companyId, id)
		if err != nil {
			return err
		}
		remaining := utils.Round2(capacity.Sub(supplied).Sub(drawn))
		if remaining.LessThanOrEqual(completionThreshold) {
			remaining = decimal.Zero
			status = models.TransactionStatusCompleted
		} else {
			status = models.TransactionStatusUnappliedCredit
		}
		balance = signedCreditBalance(transaction.Type, remaining)

	default:
		// settled document types carry no derivable balance
		return nil
	}

	if balance.Equal(transaction.Balance) && status == transaction.Status {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("company_id = ? AND id = ?", companyId, id).
		Updates(map[string]any{"balance": balance, "status": status}).Error
}

// isCreditBearingTx reports whether a funding-typed transaction actually
// carries consumable value. Untied deposits, payment-owned byproduct
// deposits and cheques written against expense lines are settled documents;
// re-deriving them from the application table would wrongly reopen them.
func isCreditBearingTx(ctx context.Context, tx *gorm.DB, companyId string, transaction *models.Transaction) (bool, error) {
	switch transaction.Type {
	case models.TransactionTypeDeposit:
		return transaction.ContactId != 0 && transaction.SourcePaymentId == 0, nil
	case models.TransactionTypeCheque:
		var count int64
		err := tx.WithContext(ctx).Model(&models.LineItem{}).
			Where("company_id = ? AND transaction_id = ?", companyId, transaction.ID).
			Count(&count).Error
		if err != nil {
			return false, err
		}
		return count == 0, nil
	}
	return true, nil
}

// creditDrawsTx totals what consuming payments drew from one credit, the
// mirror of fundingCapacityTx on the consuming side. The tagged line items
// carry negative amounts, so the sum is negated.
func creditDrawsTx(ctx context.Context, tx *gorm.DB, companyId string, creditId int) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.WithContext(ctx).Model(&models.LineItem{}).
		Where("company_id = ? AND source_credit_id = ?", companyId, creditId).
		Select("SUM(amount)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Neg(), nil
}

// fundingCapacityTx is the total value a funding transaction can supply.
// For payments that consumed existing credits the capacity is the cash
// amount plus the tagged credit contributions; for everything else it is
// the face amount.
func fundingCapacityTx(ctx context.Context, tx *gorm.DB, companyId string, transaction *models.Transaction) (decimal.Decimal, error) {
	capacity := transaction.Amount
	if transaction.Type != models.TransactionTypePayment {
		return capacity, nil
	}
	var items []models.LineItem
	err := tx.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ? AND source_credit_id > 0", companyId, transaction.ID).
		Find(&items).Error
	if err != nil {
		return decimal.Zero, err
	}
	for _, item := range items {
		capacity = capacity.Add(item.Amount.Neg())
	}
	return capacity, nil
}

// RecalculateBalance runs one recalculation in its own transaction.
func RecalculateBalance(ctx context.Context, id int) error {
	companyId, err := companyIdFromContext(ctx)
	if err != nil {
		return err
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := RecalculateBalanceTx(ctx, tx, companyId, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// RecalculateAll sweeps every transaction of the company sequentially,
// logging failures and moving on so one bad row cannot stall the sweep.
// Returns the number of rows that failed.
func RecalculateAll(ctx context.Context) (int, error) {
	logger := config.GetLogger()
	companyId, err := companyIdFromContext(ctx)
	if err != nil {
		return 0, err
	}
	correlationId := correlationIdFromContextOrNew(ctx)

	db := config.GetDB()
	var ids []int
	err = db.WithContext(ctx).Model(&models.Transaction{}).
		Where("company_id = ?", companyId).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, id := range ids {
		if err := RecalculateBalance(ctx, id); err != nil {
			failed++
			config.LogError(logger, "recalculate.go", "RecalculateAll", correlationId, id, err)
		}
	}
	return failed, nil
}
