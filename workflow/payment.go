package workflow

import (
	"context"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// applyToObligationTx allocates amount from a funding transaction to one
// obligation: over-application guard, application row, derived balance. The
// guard runs against the locked row so nothing is written on failure.
func applyToObligationTx(ctx context.Context, tx *gorm.DB, companyId string, paymentId int, invoiceId int, amount decimal.Decimal) error {
	invoice, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, invoiceId)
	if err != nil {
		return err
	}
	if !invoice.Type.IsObligation() {
		return utils.NewValidationError("invoice_id",
			string(invoice.Type)+" cannot receive a payment application")
	}
	if amount.Sign() <= 0 {
		return utils.NewValidationError("amount", "application amount must be positive")
	}
	if amount.GreaterThan(invoice.Balance.Add(completionThreshold)) {
		return &utils.OverApplicationError{
			InvoiceId: invoiceId,
			Remaining: invoice.Balance,
			Requested: amount,
		}
	}

	application := models.PaymentApplication{
		CompanyId:     companyId,
		PaymentId:     paymentId,
		InvoiceId:     invoiceId,
		AmountApplied: utils.Round2(amount),
	}
	if err := tx.WithContext(ctx).Create(&application).Error; err != nil {
		return err
	}
	return RecalculateBalanceTx(ctx, tx, companyId, invoiceId)
}

// applyFundingTx settles a freshly posted payment: consumes the credits it
// carries, allocates to each obligation and derives the payment's own
// leftover balance.
func applyFundingTx(ctx context.Context, tx *gorm.DB, companyId string, payment *models.Transaction, allocations []Allocation, credits []CreditContribution) error {
	capacity := payment.Amount
	for _, contribution := range credits {
		amount := utils.Round2(contribution.Amount)
		if err := ConsumeCreditTx(ctx, tx, companyId, contribution.CreditId, amount); err != nil {
			return err
		}
		capacity = capacity.Add(amount)
	}

	allocated := decimal.Zero
	for _, allocation := range allocations {
		allocated = allocated.Add(utils.Round2(allocation.Amount))
	}
	if allocated.GreaterThan(capacity.Add(completionThreshold)) {
		return utils.NewValidationError("allocations",
			"allocations "+allocated.StringFixed(2)+" exceed payment funds "+capacity.StringFixed(2))
	}

	for _, allocation := range allocations {
		if err := applyToObligationTx(ctx, tx, companyId, payment.ID, allocation.InvoiceId, utils.Round2(allocation.Amount)); err != nil {
			return err
		}
	}
	return RecalculateBalanceTx(ctx, tx, companyId, payment.ID)
}

// ApplyPayment allocates an existing payment's leftover to obligations. A
// leftover behaves like any other credit, so this is ApplyCredit under a
// clearer name for the payment-first call sites.
func ApplyPayment(ctx context.Context, paymentId int, allocations []Allocation) (*models.Transaction, error) {
	return ApplyCredit(ctx, paymentId, allocations)
}

// ApplyCredit allocates an existing funding transaction's remaining value to
// one or more obligations. Works for deposits, credit memos, pre-payment
// cheques and payment leftovers alike.
func ApplyCredit(ctx context.Context, creditId int, allocations []Allocation) (*models.Transaction, error) {
	companyId, err := companyIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(allocations) == 0 {
		return nil, utils.NewValidationError("allocations", "at least one allocation required")
	}

	db := config.GetDB()
	tx := db.Begin()

	credit, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, creditId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	available, err := creditAvailable(credit)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	requested := decimal.Zero
	for _, allocation := range allocations {
		requested = requested.Add(utils.Round2(allocation.Amount))
	}
	if requested.GreaterThan(available.Add(completionThreshold)) {
		tx.Rollback()
		return nil, &utils.OverApplicationError{
			InvoiceId: creditId,
			Remaining: available,
			Requested: requested,
		}
	}

	for _, allocation := range allocations {
		if err := applyToObligationTx(ctx, tx, companyId, creditId, allocation.InvoiceId, utils.Round2(allocation.Amount)); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := RecalculateBalanceTx(ctx, tx, companyId, creditId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return models.GetTransaction(ctx, creditId)
}

// BillPaymentInput settles a batch of bills from a cash amount plus any
// number of pre-payment cheques. The funds must match the requested total
// exactly; each funding source splits across the bills in proportion to
// their requested amounts.
type BillPaymentInput struct {
	Reference        string          `json:"reference"`
	Date             time.Time       `json:"date" validate:"required"`
	VendorId         int             `json:"vendor_id" validate:"required"`
	PaymentAccountId int             `json:"payment_account_id"`
	CashAmount       decimal.Decimal `json:"cash_amount"`
	ChequeIds        []int           `json:"cheque_ids"`
	Bills            []Allocation    `json:"bills" validate:"required,dive"`
}

// ApplyBillPayment pays several bills at once. A cash portion becomes its
// own payment transaction; cheques contribute their remaining balances.
// Every funding source gets its own application rows so deleting one later
// only unwinds its share.
func ApplyBillPayment(ctx context.Context, input *BillPaymentInput) ([]models.PaymentApplication, error) {
	companyId, err := companyIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := models.ValidateContactAssociation(ctx, companyId, input.VendorId, models.ContactTypeVendor); err != nil {
		return nil, err
	}

	cash := utils.Round2(input.CashAmount)
	if cash.IsNegative() {
		return nil, utils.NewValidationError("cash_amount", "cannot be negative")
	}
	if !cash.IsZero() && input.PaymentAccountId == 0 {
		return nil, utils.NewValidationError("payment_account_id", "required when paying cash")
	}

	weights := make([]decimal.Decimal, len(input.Bills))
	requested := decimal.Zero
	for i, bill := range input.Bills {
		weights[i] = utils.Round2(bill.Amount)
		if weights[i].Sign() <= 0 {
			return nil, utils.NewValidationError("bills", "bill amount must be positive")
		}
		requested = requested.Add(weights[i])
	}

	db := config.GetDB()
	tx := db.Begin()

	// funding sources: the cash payment first, then each cheque with its
	// remaining balance
	type fundingSource struct {
		id     int
		amount decimal.Decimal
	}
	var sources []fundingSource
	funds := cash

	for _, chequeId := range input.ChequeIds {
		cheque, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, chequeId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if cheque.Type != models.TransactionTypeCheque {
			tx.Rollback()
			return nil, utils.NewValidationError("cheque_ids",
				string(cheque.Type)+" is not a cheque")
		}
		available, err := creditAvailable(cheque)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if available.Sign() <= 0 {
			tx.Rollback()
			return nil, utils.NewValidationError("cheque_ids", "cheque has no remaining balance")
		}
		sources = append(sources, fundingSource{id: chequeId, amount: available})
		funds = funds.Add(available)
	}

	if !funds.Sub(requested).Abs().LessThanOrEqual(completionThreshold) {
		tx.Rollback()
		return nil, utils.NewValidationError("bills",
			"funds "+funds.StringFixed(2)+" do not match requested total "+requested.StringFixed(2))
	}

	if !cash.IsZero() {
		payment, err := createBillCashPaymentTx(ctx, tx, companyId, input, cash)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		sources = append([]fundingSource{{id: payment.ID, amount: cash}}, sources...)
	}

	for _, source := range sources {
		shares := utils.DistributeProportionally(source.amount, weights)
		for i, bill := range input.Bills {
			if shares[i].IsZero() {
				continue
			}
			if err := applyToObligationTx(ctx, tx, companyId, source.id, bill.InvoiceId, shares[i]); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if err := RecalculateBalanceTx(ctx, tx, companyId, source.id); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	var applications []models.PaymentApplication
	for _, source := range sources {
		rows, err := models.ApplicationsByPaymentTx(ctx, tx, companyId, source.id)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		applications = append(applications, rows...)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return applications, nil
}

// createBillCashPaymentTx posts the vendor-side payment that carries the
// cash portion of a bill payment. Debit AP, credit the bank.
func createBillCashPaymentTx(ctx context.Context, tx *gorm.DB, companyId string, input *BillPaymentInput, cash decimal.Decimal) (*models.Transaction, error) {
	systemAccounts, err := models.GetSystemAccountsTx(ctx, tx, companyId)
	if err != nil {
		return nil, err
	}
	apAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountPayable)
	if err != nil {
		return nil, err
	}
	payment := &models.Transaction{
		CompanyId: companyId,
		Type:      models.TransactionTypePayment,
		Reference: input.Reference,
		Date:      input.Date,
		Amount:    cash,
		Balance:   cash,
		Status:    models.TransactionStatusUnappliedCredit,
		ContactId: input.VendorId,
		LedgerEntries: []models.LedgerEntry{
			{AccountId: apAccountId, Debit: cash, ContactId: input.VendorId},
			{AccountId: input.PaymentAccountId, Credit: cash, ContactId: input.VendorId},
		},
	}
	if err := models.CreateTransactionTx(ctx, tx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}
