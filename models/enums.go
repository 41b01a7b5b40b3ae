package models

type TransactionType string

const (
	TransactionTypeInvoice        TransactionType = "invoice"
	TransactionTypeBill           TransactionType = "bill"
	TransactionTypeExpense        TransactionType = "expense"
	TransactionTypeCheque         TransactionType = "cheque"
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypePayment        TransactionType = "payment"
	TransactionTypeJournalEntry   TransactionType = "journal_entry"
	TransactionTypeTransfer       TransactionType = "transfer"
	TransactionTypeSalesReceipt   TransactionType = "sales_receipt"
	TransactionTypeCustomerCredit TransactionType = "customer_credit"
	TransactionTypeVendorCredit   TransactionType = "vendor_credit"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeInvoice, TransactionTypeBill, TransactionTypeExpense,
		TransactionTypeCheque, TransactionTypeDeposit, TransactionTypePayment,
		TransactionTypeJournalEntry, TransactionTypeTransfer, TransactionTypeSalesReceipt,
		TransactionTypeCustomerCredit, TransactionTypeVendorCredit:
		return true
	}
	return false
}

// IsObligation reports whether the type accumulates an owed balance that
// fundings reduce.
func (t TransactionType) IsObligation() bool {
	return t == TransactionTypeInvoice || t == TransactionTypeBill
}

// IsFunding reports whether the type supplies value consumable by
// obligations.
func (t TransactionType) IsFunding() bool {
	switch t {
	case TransactionTypePayment, TransactionTypeDeposit, TransactionTypeCheque,
		TransactionTypeCustomerCredit, TransactionTypeVendorCredit:
		return true
	}
	return false
}

// CreditSign is the per-type sign convention for unapplied-credit balances.
// Deposits and credit memos carry value owed back (negative); cheques and
// payments carry leftover usable cash (positive). The duality is historical
// and deliberately not unified: flipping it implies a data migration.
func (t TransactionType) CreditSign() int {
	switch t {
	case TransactionTypeDeposit, TransactionTypeCustomerCredit, TransactionTypeVendorCredit:
		return -1
	case TransactionTypeCheque, TransactionTypePayment:
		return 1
	}
	return 0
}

type TransactionStatus string

const (
	TransactionStatusOpen            TransactionStatus = "open"
	TransactionStatusPaid            TransactionStatus = "paid"
	TransactionStatusCompleted       TransactionStatus = "completed"
	TransactionStatusPartial         TransactionStatus = "partial"
	TransactionStatusUnappliedCredit TransactionStatus = "unapplied_credit"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeIncome    AccountType = "Income"
	AccountTypeExpense   AccountType = "Expense"
)

// NormalBalance is the side on which an account of this type increases.
func (t AccountType) NormalBalance() string {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return "DEBIT"
	default:
		return "CREDIT"
	}
}

type ContactType string

const (
	ContactTypeCustomer ContactType = "Customer"
	ContactTypeVendor   ContactType = "Vendor"
)

// System account codes resolved through the chart of accounts.
const (
	SystemAccountReceivable       = "AR"
	SystemAccountPayable          = "AP"
	SystemAccountUndepositedFunds = "UF"
)
