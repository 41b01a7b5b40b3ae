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

// NewTransaction is the caller's intent. The posting engine turns it into a
// header, line items and balanced ledger entries; the payment application
// engine then records any allocations it carries.
type NewTransaction struct {
	Type      models.TransactionType `json:"type" validate:"required"`
	Reference string                 `json:"reference"`
	Date      time.Time              `json:"date" validate:"required"`
	ContactId int                    `json:"contact_id"`

	// document-level tax; TaxAmount non-zero overrides the calculated value
	SalesTaxId int             `json:"sales_tax_id"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`

	// bank / payment-side account for payments, deposits, expenses,
	// cheques and sales receipts
	DepositAccountId int `json:"deposit_account_id"`

	// untied deposits and transfers
	FromAccountId int `json:"from_account_id"`
	ToAccountId   int `json:"to_account_id"`

	// cash amount for payments and untied deposits/transfers
	Amount decimal.Decimal `json:"amount"`

	Description string `json:"description"`

	LineItems []NewLineItem `json:"line_items" validate:"dive"`

	// journal entries are caller-supplied
	Entries []NewLedgerEntry `json:"entries" validate:"dive"`

	// payment-only: obligations to fund and existing credits to consume
	Allocations []Allocation         `json:"allocations" validate:"dive"`
	Credits     []CreditContribution `json:"credits" validate:"dive"`

	// payment-only: move the received cash from undeposited funds into a
	// bank account through a system-generated deposit
	BankDepositAccountId int `json:"bank_deposit_account_id"`
}

type NewLineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	AccountId   int             `json:"account_id"`
	SalesTaxId  int             `json:"sales_tax_id"`
	ProductId   int             `json:"product_id"`
}

type NewLedgerEntry struct {
	AccountId   int             `json:"account_id" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type Allocation struct {
	InvoiceId int             `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type CreditContribution struct {
	CreditId int             `json:"credit_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

// taxShare is one tax component's slice of the document tax amount.
type taxShare struct {
	AccountId int
	Amount    decimal.Decimal
}

// PostTransaction builds balanced ledger entries for the intent, persists
// header/line items/entries atomically, records allocations and corrects
// counterpart balances. One serializable database transaction end to end.
func PostTransaction(ctx context.Context, input *NewTransaction) (*models.Transaction, error) {
	logger := config.GetLogger()
	companyId, err := companyIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Type.Valid() {
		return nil, utils.NewValidationError("type", "invalid transaction type")
	}

	if err := validateContactForType(ctx, companyId, input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	transaction, err := buildTransactionTx(ctx, tx, companyId, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := models.CreateTransactionTx(ctx, tx, transaction); err != nil {
		tx.Rollback()
		config.LogError(logger, "posting.go", "PostTransaction", "CreateTransaction", input.Reference, err)
		return nil, err
	}

	// payments fund obligations in the same operation
	if input.Type == models.TransactionTypePayment && (len(input.Allocations) > 0 || len(input.Credits) > 0) {
		if err := applyFundingTx(ctx, tx, companyId, transaction, input.Allocations, input.Credits); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if input.Type == models.TransactionTypePayment && input.BankDepositAccountId > 0 {
		if err := createPaymentDepositTx(ctx, tx, companyId, transaction, input.BankDepositAccountId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return models.GetTransaction(ctx, transaction.ID)
}

func validateContactForType(ctx context.Context, companyId string, input *NewTransaction) error {
	switch input.Type {
	case models.TransactionTypeInvoice, models.TransactionTypeSalesReceipt, models.TransactionTypeCustomerCredit:
		if input.ContactId == 0 {
			return utils.NewValidationError("contact_id", "a customer is required")
		}
		return models.ValidateContactAssociation(ctx, companyId, input.ContactId, models.ContactTypeCustomer)
	case models.TransactionTypeBill, models.TransactionTypeVendorCredit:
		if input.ContactId == 0 {
			return utils.NewValidationError("contact_id", "a vendor is required")
		}
		return models.ValidateContactAssociation(ctx, companyId, input.ContactId, models.ContactTypeVendor)
	case models.TransactionTypePayment:
		if input.ContactId == 0 {
			return utils.NewValidationError("contact_id", "a contact is required")
		}
	}
	return nil
}

// buildTransactionTx computes totals, distributes tax and assembles the
// header with its balanced entries.
func buildTransactionTx(ctx context.Context, tx *gorm.DB, companyId string, input *NewTransaction) (*models.Transaction, error) {
	lineItems := make([]models.LineItem, 0, len(input.LineItems))
	subTotal := decimal.Zero
	for _, item := range input.LineItems {
		amount := item.Amount
		if amount.IsZero() && !item.Quantity.IsZero() {
			amount = utils.Round2(item.Quantity.Mul(item.UnitPrice))
		}
		subTotal = subTotal.Add(amount)
		lineItems = append(lineItems, models.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      amount,
			AccountId:   item.AccountId,
			SalesTaxId:  item.SalesTaxId,
			ProductId:   item.ProductId,
		})
	}
	subTotal = utils.Round2(subTotal)

	taxAmount := decimal.Zero
	var taxShares []taxShare
	if input.SalesTaxId > 0 {
		var err error
		taxAmount, taxShares, err = distributeTax(ctx, tx, companyId, input.SalesTaxId, subTotal, input.TaxAmount)
		if err != nil {
			return nil, err
		}
	}

	transaction := &models.Transaction{
		CompanyId:   companyId,
		Type:        input.Type,
		Reference:   input.Reference,
		Date:        input.Date,
		SubTotal:    subTotal,
		TaxAmount:   taxAmount,
		ContactId:   input.ContactId,
		Description: input.Description,
	}

	total := subTotal.Add(taxAmount)
	systemAccounts, err := models.GetSystemAccountsTx(ctx, tx, companyId)
	if err != nil {
		return nil, err
	}

	switch input.Type {
	case models.TransactionTypeInvoice:
		entries, err := buildInvoiceEntries(systemAccounts, lineItems, taxShares, total, input.ContactId)
		if err != nil {
			return nil, err
		}
		transaction.Amount = total
		transaction.Balance = total
		transaction.Status = models.TransactionStatusOpen
		transaction.LedgerEntries = entries

	case models.TransactionTypeSalesReceipt:
		if input.DepositAccountId == 0 {
			return nil, utils.NewValidationError("deposit_account_id", "required for a sales receipt")
		}
		entries := buildSalesReceiptEntries(input.DepositAccountId, lineItems, taxShares, total, input.ContactId)
		transaction.Amount = total
		transaction.Balance = decimal.Zero
		transaction.Status = models.TransactionStatusCompleted
		transaction.LedgerEntries = entries

	case models.TransactionTypeBill:
		entries, err := buildBillEntries(systemAccounts, lineItems, taxShares, total, input.ContactId)
		if err != nil {
			return nil, err
		}
		transaction.Amount = total
		transaction.Balance = total
		transaction.Status = models.TransactionStatusOpen
		transaction.LedgerEntries = entries

	case models.TransactionTypeExpense, models.TransactionTypeCheque:
		if input.DepositAccountId == 0 {
			return nil, utils.NewValidationError("deposit_account_id", "payment account required")
		}
		entries := buildOutflowEntries(input.DepositAccountId, lineItems, taxShares, total, input.ContactId)
		transaction.Amount = total
		transaction.Balance = decimal.Zero
		transaction.Status = models.TransactionStatusCompleted
		transaction.LedgerEntries = entries
		// a cheque written to a vendor without expense lines is a
		// pre-payment: leftover usable cash, positive balance
		if input.Type == models.TransactionTypeCheque && len(lineItems) == 0 {
			apAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountPayable)
			if err != nil {
				return nil, err
			}
			if input.Amount.IsZero() {
				return nil, utils.NewValidationError("amount", "required for a pre-payment cheque")
			}
			amount := utils.Round2(input.Amount)
			transaction.Amount = amount
			transaction.Balance = amount
			transaction.Status = models.TransactionStatusUnappliedCredit
			transaction.LedgerEntries = []models.LedgerEntry{
				{AccountId: apAccountId, Debit: amount, ContactId: input.ContactId, Description: input.Description},
				{AccountId: input.DepositAccountId, Credit: amount, ContactId: input.ContactId, Description: input.Description},
			}
		}

	case models.TransactionTypeDeposit:
		entries, amount, balance, status, err := buildDepositEntries(systemAccounts, input)
		if err != nil {
			return nil, err
		}
		transaction.Amount = amount
		transaction.Balance = balance
		transaction.Status = status
		transaction.LedgerEntries = entries

	case models.TransactionTypePayment:
		entries, items, err := buildPaymentEntries(ctx, tx, companyId, systemAccounts, input)
		if err != nil {
			return nil, err
		}
		transaction.Amount = utils.Round2(input.Amount)
		// capacity not yet consumed; applyFundingTx settles the final value
		transaction.Balance = transaction.Amount
		transaction.Status = models.TransactionStatusUnappliedCredit
		transaction.LedgerEntries = entries
		lineItems = append(lineItems, items...)

	case models.TransactionTypeCustomerCredit:
		entries, err := buildCreditMemoEntries(systemAccounts, models.SystemAccountReceivable, lineItems, taxShares, total, input.ContactId)
		if err != nil {
			return nil, err
		}
		transaction.Amount = total
		transaction.Balance = total.Neg()
		transaction.Status = models.TransactionStatusUnappliedCredit
		transaction.LedgerEntries = entries

	case models.TransactionTypeVendorCredit:
		entries, err := buildCreditMemoEntries(systemAccounts, models.SystemAccountPayable, lineItems, taxShares, total, input.ContactId)
		if err != nil {
			return nil, err
		}
		transaction.Amount = total
		transaction.Balance = total.Neg()
		transaction.Status = models.TransactionStatusUnappliedCredit
		transaction.LedgerEntries = entries

	case models.TransactionTypeJournalEntry:
		entries, amount := buildJournalEntries(input)
		transaction.Amount = amount
		transaction.Balance = decimal.Zero
		transaction.Status = models.TransactionStatusCompleted
		transaction.LedgerEntries = entries

	case models.TransactionTypeTransfer:
		if input.FromAccountId == 0 || input.ToAccountId == 0 {
			return nil, utils.NewValidationError("from_account_id", "transfer needs both accounts")
		}
		amount := utils.Round2(input.Amount)
		transaction.Amount = amount
		transaction.Balance = decimal.Zero
		transaction.Status = models.TransactionStatusCompleted
		transaction.LedgerEntries = []models.LedgerEntry{
			{AccountId: input.ToAccountId, Debit: amount, Description: input.Description},
			{AccountId: input.FromAccountId, Credit: amount, Description: input.Description},
		}
	}

	transaction.LineItems = lineItems
	return transaction, nil
}

// distributeTax resolves the tax's components, computes each component's
// theoretical share from its rate, then distributes the actual tax amount
// (which the caller may have overridden) proportionally. The last component
// takes the exact remainder so the distributed total always equals the tax
// amount despite rounding.
func distributeTax(ctx context.Context, tx *gorm.DB, companyId string, salesTaxId int, subTotal decimal.Decimal, override decimal.Decimal) (decimal.Decimal, []taxShare, error) {
	components, err := models.GetTaxComponentsTx(ctx, tx, companyId, salesTaxId)
	if err != nil {
		return decimal.Zero, nil, err
	}

	calculated := make([]decimal.Decimal, len(components))
	totalCalculated := decimal.Zero
	oneHundred := decimal.NewFromInt(100)
	for i, component := range components {
		calculated[i] = utils.Round2(subTotal.Mul(component.Rate).Div(oneHundred))
		totalCalculated = totalCalculated.Add(calculated[i])
	}

	taxAmount := totalCalculated
	if !override.IsZero() {
		taxAmount = utils.Round2(override)
	}

	shares := utils.DistributeProportionally(taxAmount, calculated)
	taxShares := make([]taxShare, 0, len(components))
	for i, component := range components {
		if component.AccountId == 0 {
			return decimal.Zero, nil, &utils.ConfigurationError{SystemCode: "TaxPayable:" + component.Name}
		}
		if shares[i].IsZero() {
			continue
		}
		taxShares = append(taxShares, taxShare{AccountId: component.AccountId, Amount: shares[i]})
	}
	return taxAmount, taxShares, nil
}

// Invoice: Debit AR for the total, Credit revenue per line, Credit the tax
// account(s).
func buildInvoiceEntries(systemAccounts map[string]int, lineItems []models.LineItem, taxShares []taxShare, total decimal.Decimal, contactId int) ([]models.LedgerEntry, error) {
	arAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountReceivable)
	if err != nil {
		return nil, err
	}
	entries := []models.LedgerEntry{
		{AccountId: arAccountId, Debit: total, ContactId: contactId},
	}
	for _, item := range lineItems {
		if item.AccountId == 0 {
			return nil, utils.NewValidationError("line_items", "revenue account required on every line")
		}
		entries = append(entries, models.LedgerEntry{
			AccountId: item.AccountId, Credit: item.Amount, ContactId: contactId, Description: item.Description,
		})
	}
	for _, share := range taxShares {
		entries = append(entries, models.LedgerEntry{AccountId: share.AccountId, Credit: share.Amount, ContactId: contactId})
	}
	return entries, nil
}

// Sales receipt: like an invoice but settled immediately into the deposit
// account.
func buildSalesReceiptEntries(depositAccountId int, lineItems []models.LineItem, taxShares []taxShare, total decimal.Decimal, contactId int) []models.LedgerEntry {
	entries := []models.LedgerEntry{
		{AccountId: depositAccountId, Debit: total, ContactId: contactId},
	}
	for _, item := range lineItems {
		entries = append(entries, models.LedgerEntry{
			AccountId: item.AccountId, Credit: item.Amount, ContactId: contactId, Description: item.Description,
		})
	}
	for _, share := range taxShares {
		entries = append(entries, models.LedgerEntry{AccountId: share.AccountId, Credit: share.Amount, ContactId: contactId})
	}
	return entries
}

// Bill: Debit expense per line and tax, Credit AP for the total.
func buildBillEntries(systemAccounts map[string]int, lineItems []models.LineItem, taxShares []taxShare, total decimal.Decimal, contactId int) ([]models.LedgerEntry, error) {
	apAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountPayable)
	if err != nil {
		return nil, err
	}
	entries := make([]models.LedgerEntry, 0, len(lineItems)+len(taxShares)+1)
	for _, item := range lineItems {
		if item.AccountId == 0 {
			return nil, utils.NewValidationError("line_items", "expense account required on every line")
		}
		entries = append(entries, models.LedgerEntry{
			AccountId: item.AccountId, Debit: item.Amount, ContactId: contactId, Description: item.Description,
		})
	}
	for _, share := range taxShares {
		entries = append(entries, models.LedgerEntry{AccountId: share.AccountId, Debit: share.Amount, ContactId: contactId})
	}
	entries = append(entries, models.LedgerEntry{AccountId: apAccountId, Credit: total, ContactId: contactId})
	return entries, nil
}

// Expense / cheque with lines: Debit expense accounts, Credit the payment
// account.
func buildOutflowEntries(paymentAccountId int, lineItems []models.LineItem, taxShares []taxShare, total decimal.Decimal, contactId int) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(lineItems)+len(taxShares)+1)
	for _, item := range lineItems {
		entries = append(entries, models.LedgerEntry{
			AccountId: item.AccountId, Debit: item.Amount, ContactId: contactId, Description: item.Description,
		})
	}
	for _, share := range taxShares {
		entries = append(entries, models.LedgerEntry{AccountId: share.AccountId, Debit: share.Amount, ContactId: contactId})
	}
	entries = append(entries, models.LedgerEntry{AccountId: paymentAccountId, Credit: total, ContactId: contactId})
	return entries
}

// Deposit tied to a customer produces a usable credit on AR; untied it is a
// plain account-to-account move.
func buildDepositEntries(systemAccounts map[string]int, input *NewTransaction) ([]models.LedgerEntry, decimal.Decimal, decimal.Decimal, models.TransactionStatus, error) {
	amount := utils.Round2(input.Amount)
	if amount.IsZero() {
		return nil, decimal.Zero, decimal.Zero, "", utils.NewValidationError("amount", "required for a deposit")
	}
	if input.ContactId > 0 {
		if input.DepositAccountId == 0 {
			return nil, decimal.Zero, decimal.Zero, "", utils.NewValidationError("deposit_account_id", "required for a deposit")
		}
		arAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountReceivable)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, "", err
		}
		entries := []models.LedgerEntry{
			{AccountId: input.DepositAccountId, Debit: amount, ContactId: input.ContactId, Description: input.Description},
			{AccountId: arAccountId, Credit: amount, ContactId: input.ContactId, Description: input.Description},
		}
		return entries, amount, amount.Neg(), models.TransactionStatusUnappliedCredit, nil
	}
	if input.FromAccountId == 0 || input.ToAccountId == 0 {
		return nil, decimal.Zero, decimal.Zero, "", utils.NewValidationError("from_account_id", "untied deposit needs both accounts")
	}
	entries := []models.LedgerEntry{
		{AccountId: input.ToAccountId, Debit: amount, Description: input.Description},
		{AccountId: input.FromAccountId, Credit: amount, Description: input.Description},
	}
	return entries, amount, decimal.Zero, models.TransactionStatusCompleted, nil
}

// Payment: Debit bank for cash received, Debit AR when consuming existing
// credits, Credit AR for the whole funded total. The negative line items
// tag each consumed credit so deletion can restore it.
func buildPaymentEntries(ctx context.Context, tx *gorm.DB, companyId string, systemAccounts map[string]int, input *NewTransaction) ([]models.LedgerEntry, []models.LineItem, error) {
	arAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountReceivable)
	if err != nil {
		return nil, nil, err
	}
	cash := utils.Round2(input.Amount)
	if cash.IsNegative() {
		return nil, nil, utils.NewValidationError("amount", "cannot be negative")
	}
	if !cash.IsZero() && input.DepositAccountId == 0 {
		return nil, nil, utils.NewValidationError("deposit_account_id", "required when cash is received")
	}

	var entries []models.LedgerEntry
	var creditItems []models.LineItem
	funded := cash

	if !cash.IsZero() {
		entries = append(entries, models.LedgerEntry{
			AccountId: input.DepositAccountId, Debit: cash, ContactId: input.ContactId, Description: input.Description,
		})
	}
	for _, contribution := range input.Credits {
		amount := utils.Round2(contribution.Amount)
		if amount.Sign() <= 0 {
			return nil, nil, utils.NewValidationError("credits", "credit contribution must be positive")
		}
		credit, err := utils.FetchModelForUpdate[models.Transaction](ctx, tx, companyId, contribution.CreditId)
		if err != nil {
			return nil, nil, err
		}
		if credit.Type.CreditSign() == 0 || credit.Status == models.TransactionStatusCompleted {
			return nil, nil, utils.NewValidationError("credits", "transaction is not an available credit")
		}
		entries = append(entries, models.LedgerEntry{
			AccountId: arAccountId, Debit: amount, ContactId: input.ContactId,
			Description: "Applied credit " + credit.Reference,
		})
		creditItems = append(creditItems, models.LineItem{
			Description:    "Applied credit " + credit.Reference,
			Amount:         amount.Neg(),
			SourceCreditId: credit.ID,
		})
		funded = funded.Add(amount)
	}
	if funded.IsZero() {
		return nil, nil, utils.NewValidationError("amount", "payment must carry cash or credits")
	}
	entries = append(entries, models.LedgerEntry{
		AccountId: arAccountId, Credit: funded, ContactId: input.ContactId, Description: input.Description,
	})
	return entries, creditItems, nil
}

// Customer/vendor credit memo: the reverse posture of the document it
// offsets.
func buildCreditMemoEntries(systemAccounts map[string]int, systemCode string, lineItems []models.LineItem, taxShares []taxShare, total decimal.Decimal, contactId int) ([]models.LedgerEntry, error) {
	controlAccountId, err := models.RequireSystemAccount(systemAccounts, systemCode)
	if err != nil {
		return nil, err
	}
	entries := make([]models.LedgerEntry, 0, len(lineItems)+len(taxShares)+1)
	if systemCode == models.SystemAccountReceivable {
		entries = append(entries, models.LedgerEntry{AccountId: controlAccountId, Credit: total, ContactId: contactId})
		for _, item := range lineItems {
			entries = append(entries, models.LedgerEntry{AccountId: item.AccountId, Debit: item.Amount, ContactId: contactId, Description: item.Description})
		}
		for _, share := range taxShares {
			entries = append(entries, models.LedgerEntry{AccountId: share.AccountId, Debit: share.Amount, ContactId: contactId})
		}
	} else {
		entries = append(entries, models.LedgerEntry{AccountId: controlAccountId, Debit: total, ContactId: contactId})
		for _, item := range lineItems {
			entries = append(entries, models.LedgerEntry{AccountId: item.AccountId, Credit: item.Amount, ContactId: contactId, Description: item.Description})
		}
		for _, share := range taxShares {
			entries = append(entries, models.LedgerEntry{AccountId: share.AccountId, Credit: share.Amount, ContactId: contactId})
		}
	}
	return entries, nil
}

func buildJournalEntries(input *NewTransaction) ([]models.LedgerEntry, decimal.Decimal) {
	entries := make([]models.LedgerEntry, 0, len(input.Entries))
	amount := decimal.Zero
	for _, entry := range input.Entries {
		entries = append(entries, models.LedgerEntry{
			AccountId:   entry.AccountId,
			Debit:       utils.Round2(entry.Debit),
			Credit:      utils.Round2(entry.Credit),
			Description: entry.Description,
		})
		amount = amount.Add(entry.Debit)
	}
	return entries, utils.Round2(amount)
}

// createPaymentDepositTx writes the system-generated deposit that moves
// received cash into a bank account. It is owned by the payment: deleting
// it directly fails with DependencyError, deleting the payment removes it.
func createPaymentDepositTx(ctx context.Context, tx *gorm.DB, companyId string, payment *models.Transaction, bankAccountId int) error {
	systemAccounts, err := models.GetSystemAccountsTx(ctx, tx, companyId)
	if err != nil {
		return err
	}
	ufAccountId, err := models.RequireSystemAccount(systemAccounts, models.SystemAccountUndepositedFunds)
	if err != nil {
		return err
	}
	deposit := &models.Transaction{
		CompanyId:       companyId,
		Type:            models.TransactionTypeDeposit,
		Reference:       payment.Reference + "-DEP",
		Date:            payment.Date,
		Amount:          payment.Amount,
		Balance:         decimal.Zero,
		Status:          models.TransactionStatusCompleted,
		Description:     "Deposit of payment " + payment.Reference,
		SourcePaymentId: payment.ID,
		LedgerEntries: []models.LedgerEntry{
			{AccountId: bankAccountId, Debit: payment.Amount},
			{AccountId: ufAccountId, Credit: payment.Amount},
		},
	}
	return models.CreateTransactionTx(ctx, tx, deposit)
}
