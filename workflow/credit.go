package workflow

import (
	"context"

	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// creditAvailable converts a funding transaction's signed balance into the
// positive amount still consumable. Deposits and credit memos store owed
// value as a negative balance, cheques and payments store leftover cash as
// a positive one.
func creditAvailable(credit *models.Transaction) (decimal.Decimal, error) {
	sign := credit.Type.CreditSign()
	if sign == 0 {
		return decimal.Zero, utils.NewValidationError("credit_id",
			string(credit.Type)+" cannot be used as a credit")
	}
	if sign < 0 {
		return credit.Balance.Neg(), nil
	}
	return credit.Balance, nil
}

func signedCreditBalance(creditType models.TransactionType, available decimal.Decimal) decimal.Decimal {
	if creditType.CreditSign() < 0 {
		return available.Neg()
	}
	return available
}

// ConsumeCreditTx draws amount from a funding transaction, updating its
// balance and status under a row lock. Fails with OverApplicationError when
// the draw exceeds what remains; nothing is written in that case.
func ConsumeCreditTx(ctx context.Context, tx *gorm.DB, companyId string, creditId int, amount decimal.Decimal) error {
	credit, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, creditId)
	if err != nil {
		return err
	}
	available, err := creditAvailable(credit)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available.Add(completionThreshold)) {
		return &utils.OverApplicationError{
			InvoiceId: creditId,
			Remaining: available,
			Requested: amount,
		}
	}

	remaining := available.Sub(amount)
	if remaining.LessThanOrEqual(completionThreshold) {
		remaining = decimal.Zero
		credit.Status = models.TransactionStatusCompleted
	} else {
		credit.Status = models.TransactionStatusUnappliedCredit
	}
	credit.Balance = signedCreditBalance(credit.Type, remaining)

	return tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("company_id = ? AND id = ?", companyId, creditId).
		Updates(map[string]any{"balance": credit.Balance, "status": credit.Status}).Error
}

// RestoreCreditTx hands amount back to a funding transaction, reopening it
// when the restored value exceeds rounding dust.
func RestoreCreditTx(ctx context.Context, tx *gorm.DB, companyId string, creditId int, amount decimal.Decimal) error {
	credit, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, creditId)
	if err != nil {
		return err
	}
	available, err := creditAvailable(credit)
	if err != nil {
		return err
	}

	restored := available.Add(amount)
	credit.Balance = signedCreditBalance(credit.Type, restored)
	if restored.GreaterThan(completionThreshold) {
		credit.Status = models.TransactionStatusUnappliedCredit
	} else {
		credit.Status = models.TransactionStatusCompleted
	}

	return tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("company_id = ? AND id = ?", companyId, creditId).
		Updates(map[string]any{"balance": credit.Balance, "status": credit.Status}).Error
}
