package models

import (
	"context"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is the header row of every financial document. Balance is the
// signed remainder: amount minus net allocations for obligations, and the
// type-signed unconsumed value for funding transactions.
type Transaction struct {
	ID              int               `gorm:"primary_key" json:"id"`
	CompanyId       string            `gorm:"size:64;index;not null;index:idx_txn_company_type_ref,priority:1" json:"company_id" validate:"required"`
	Type            TransactionType   `gorm:"size:20;not null;index:idx_txn_company_type_ref,priority:2" json:"type" validate:"required"`
	Reference       string            `gorm:"size:64;not null;index:idx_txn_company_type_ref,priority:3" json:"reference"`
	Date            time.Time         `gorm:"index;not null" json:"date"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	SubTotal        decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"sub_total"`
	TaxAmount       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	Balance         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"balance"`
	Status          TransactionStatus `gorm:"size:20;not null" json:"status"`
	ContactId       int               `gorm:"index;default:0" json:"contact_id"`
	Description     string            `gorm:"size:255" json:"description"`
	SourcePaymentId int               `gorm:"index;default:0" json:"source_payment_id"`
	LineItems       []LineItem        `gorm:"foreignKey:TransactionId" json:"line_items"`
	LedgerEntries   []LedgerEntry     `gorm:"foreignKey:TransactionId" json:"ledger_entries"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// LineItem is one document line. SourceCreditId tags the negative-amount
// legs a payment writes when it consumes an existing credit, so reversal
// can restore the right funding transaction.
type LineItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      string          `gorm:"size:64;index;not null" json:"company_id"`
	TransactionId  int             `gorm:"index;not null" json:"transaction_id"`
	Description    string          `gorm:"size:255" json:"description"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	AccountId      int             `gorm:"index;default:0" json:"account_id"`
	SalesTaxId     int             `gorm:"default:0" json:"sales_tax_id"`
	ProductId      int             `gorm:"default:0" json:"product_id"`
	SourceCreditId int             `gorm:"index;default:0" json:"source_credit_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// LedgerEntry is one debit or credit posting leg. Exactly one of Debit and
// Credit is non-zero; per transaction the legs balance.
type LedgerEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CompanyId     string          `gorm:"size:64;index;not null;index:idx_le_company_account,priority:1" json:"company_id"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id"`
	AccountId     int             `gorm:"not null;index:idx_le_company_account,priority:2" json:"account_id"`
	Debit         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	Date          time.Time       `gorm:"index" json:"date"`
	Description   string          `gorm:"size:255" json:"description"`
	ContactId     int             `gorm:"index;default:0" json:"contact_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidateEntriesBalanced enforces the double-entry invariant in integer
// cents (tolerance one cent for amounts that were rounded independently).
func ValidateEntriesBalanced(entries []LedgerEntry) error {
	var debitCents, creditCents int64
	for _, entry := range entries {
		if !entry.Debit.IsZero() && !entry.Credit.IsZero() {
			return utils.NewValidationError("ledger_entries", "an entry must be either a debit or a credit, not both")
		}
		debitCents += utils.ToCents(entry.Debit)
		creditCents += utils.ToCents(entry.Credit)
	}
	diff := debitCents - creditCents
	if diff < -1 || diff > 1 {
		return utils.NewValidationError("ledger_entries",
			"debits "+utils.FromCents(debitCents).StringFixed(2)+
				" do not equal credits "+utils.FromCents(creditCents).StringFixed(2))
	}
	return nil
}

func validateReferenceUnique(ctx context.Context, tx *gorm.DB, companyId string, txnType TransactionType, reference string, id int) error {
	if reference == "" {
		return nil
	}
	var count int64
	dbCtx := tx.WithContext(ctx).Model(&Transaction{}).
		Where("company_id = ? AND type = ? AND reference = ?", companyId, txnType, reference)
	if id > 0 {
		dbCtx = dbCtx.Where("id <> ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("reference", string(txnType)+" "+reference+" already exists")
	}
	return nil
}

// CreateTransactionTx persists a header with its line items and ledger
// entries inside the caller's transaction, resolving the generated id into
// the child rows. Fails with ValidationError when the entries don't balance.
func CreateTransactionTx(ctx context.Context, tx *gorm.DB, transaction *Transaction) error {
	if !transaction.Type.Valid() {
		return utils.NewValidationError("type", "invalid transaction type")
	}
	if err := ValidateEntriesBalanced(transaction.LedgerEntries); err != nil {
		return err
	}
	if err := validateReferenceUnique(ctx, tx, transaction.CompanyId, transaction.Type, transaction.Reference, 0); err != nil {
		return err
	}

	for i := range transaction.LineItems {
		transaction.LineItems[i].CompanyId = transaction.CompanyId
	}
	for i := range transaction.LedgerEntries {
		transaction.LedgerEntries[i].CompanyId = transaction.CompanyId
		if transaction.LedgerEntries[i].Date.IsZero() {
			transaction.LedgerEntries[i].Date = transaction.Date
		}
	}
	// gorm resolves TransactionId into the association rows
	return tx.WithContext(ctx).Create(transaction).Error
}

// CreateTransaction is CreateTransactionTx wrapped in its own transaction.
func CreateTransaction(ctx context.Context, transaction *Transaction) (*Transaction, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	transaction.CompanyId = companyId

	db := config.GetDB()
	tx := db.Begin()
	if err := CreateTransactionTx(ctx, tx, transaction); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

func GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	return utils.FetchModel[Transaction](ctx, companyId, id, "LineItems", "LedgerEntries")
}

// UpdateTransactionInput carries replacement values. Nil child slices keep
// the existing rows; non-nil slices replace them wholesale.
type UpdateTransactionInput struct {
	Reference     *string
	Date          *time.Time
	Amount        *decimal.Decimal
	SubTotal      *decimal.Decimal
	TaxAmount     *decimal.Decimal
	Balance       *decimal.Decimal
	Status        *TransactionStatus
	ContactId     *int
	Description   *string
	LineItems     []LineItem
	LedgerEntries []LedgerEntry
}

func UpdateTransaction(ctx context.Context, id int, input *UpdateTransactionInput) (*Transaction, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}

	db := config.GetDB()
	tx := db.Begin()

	transaction, err := utils.FetchModelForUpdate[Transaction](ctx, tx, companyId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if input.Reference != nil && *input.Reference != transaction.Reference {
		if err := validateReferenceUnique(ctx, tx, companyId, transaction.Type, *input.Reference, id); err != nil {
			tx.Rollback()
			return nil, err
		}
		transaction.Reference = *input.Reference
	}
	if input.Date != nil {
		transaction.Date = *input.Date
	}
	if input.Amount != nil {
		transaction.Amount = *input.Amount
	}
	if input.SubTotal != nil {
		transaction.SubTotal = *input.SubTotal
	}
	if input.TaxAmount != nil {
		transaction.TaxAmount = *input.TaxAmount
	}
	if input.Balance != nil {
		transaction.Balance = *input.Balance
	}
	if input.Status != nil {
		transaction.Status = *input.Status
	}
	if input.ContactId != nil {
		transaction.ContactId = *input.ContactId
	}
	if input.Description != nil {
		transaction.Description = *input.Description
	}

	if input.LedgerEntries != nil {
		if err := ValidateEntriesBalanced(input.LedgerEntries); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).
			Where("company_id = ? AND transaction_id = ?", companyId, id).
			Delete(&LedgerEntry{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		for i := range input.LedgerEntries {
			input.LedgerEntries[i].ID = 0
			input.LedgerEntries[i].CompanyId = companyId
			input.LedgerEntries[i].TransactionId = id
			if input.LedgerEntries[i].Date.IsZero() {
				input.LedgerEntries[i].Date = transaction.Date
			}
		}
		if err := tx.WithContext(ctx).Create(&input.LedgerEntries).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if input.LineItems != nil {
		if err := tx.WithContext(ctx).
			Where("company_id = ? AND transaction_id = ?", companyId, id).
			Delete(&LineItem{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		for i := range input.LineItems {
			input.LineItems[i].ID = 0
			input.LineItems[i].CompanyId = companyId
			input.LineItems[i].TransactionId = id
		}
		if err := tx.WithContext(ctx).Create(&input.LineItems).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	transaction.LineItems = nil
	transaction.LedgerEntries = nil
	if err := tx.WithContext(ctx).Omit("LineItems", "LedgerEntries").Save(transaction).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetTransaction(ctx, id)
}

// DeleteTransactionRowsTx removes a transaction's children and header. Raw
// row removal only: cross-transaction reversal lives in the workflow
// package and must run first.
func DeleteTransactionRowsTx(ctx context.Context, tx *gorm.DB, companyId string, id int) error {
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyId, id).
		Delete(&LedgerEntry{}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyId, id).
		Delete(&LineItem{}).Error; err != nil {
		return err
	}
	result := tx.WithContext(ctx).
		Where("company_id = ?", companyId).
		Delete(&Transaction{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("Transaction", id)
	}
	return nil
}

func DeleteTransactionRows(ctx context.Context, id int) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return utils.NewValidationError("company_id", "required")
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := DeleteTransactionRowsTx(ctx, tx, companyId, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func GetLineItems(ctx context.Context, transactionId int) ([]LineItem, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	db := config.GetDB()
	var items []LineItem
	err := db.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyId, transactionId).
		Order("id").Find(&items).Error
	return items, err
}

func GetLedgerEntries(ctx context.Context, transactionId int) ([]LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, utils.NewValidationError("company_id", "required")
	}
	db := config.GetDB()
	var entries []LedgerEntry
	err := db.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyId, transactionId).
		Order("id").Find(&entries).Error
	return entries, err
}
