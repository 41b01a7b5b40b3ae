package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/jaytrivedi1/vedo_books_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var connectOnce sync.Once

// fixture is one isolated company: its own chart of accounts and contacts,
// keyed by a fresh company id so tests never see each other's rows.
type fixture struct {
	ctx      context.Context
	company  string
	ar       int
	ap       int
	uf       int
	bank     int
	sales    int
	expense  int
	customer *models.Contact
	vendor   *models.Contact
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	connectOnce.Do(func() {
		if err := config.ConnectTestDatabase(); err != nil {
			t.Fatalf("ConnectTestDatabase: %v", err)
		}
		if err := models.Migrate(config.GetDB()); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
	})

	company := uuid.NewString()
	ctx := utils.SetCompanyIdInContext(context.Background(), company)

	f := &fixture{ctx: ctx, company: company}
	f.ar = mustAccount(t, ctx, "1200", "Accounts Receivable", models.AccountTypeAsset, models.SystemAccountReceivable)
	f.ap = mustAccount(t, ctx, "2100", "Accounts Payable", models.AccountTypeLiability, models.SystemAccountPayable)
	f.uf = mustAccount(t, ctx, "1050", "Undeposited Funds", models.AccountTypeAsset, models.SystemAccountUndepositedFunds)
	f.bank = mustAccount(t, ctx, "1000", "Business Chequing", models.AccountTypeAsset, "")
	f.sales = mustAccount(t, ctx, "4000", "Sales", models.AccountTypeIncome, "")
	f.expense = mustAccount(t, ctx, "5000", "Office Supplies", models.AccountTypeExpense, "")

	customer, err := models.CreateContact(ctx, &models.NewContact{Name: "Smile Traders", Type: models.ContactTypeCustomer})
	require.NoError(t, err)
	f.customer = customer

	vendor, err := models.CreateContact(ctx, &models.NewContact{Name: "Paper Supply Co", Type: models.ContactTypeVendor})
	require.NoError(t, err)
	f.vendor = vendor

	return f
}

func mustAccount(t *testing.T, ctx context.Context, code, name string, accountType models.AccountType, systemCode string) int {
	t.Helper()
	account, err := models.CreateAccount(ctx, &models.NewAccount{
		Code: code, Name: name, Type: accountType, SystemCode: systemCode,
	})
	require.NoError(t, err)
	return account.ID
}

func (f *fixture) postInvoice(t *testing.T, reference string, amount decimal.Decimal) *models.Transaction {
	t.Helper()
	invoice, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:      models.TransactionTypeInvoice,
		Reference: reference,
		Date:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ContactId: f.customer.ID,
		LineItems: []workflow.NewLineItem{
			{Description: "Services", Amount: amount, AccountId: f.sales},
		},
	})
	require.NoError(t, err)
	return invoice
}

func (f *fixture) postBill(t *testing.T, reference string, amount decimal.Decimal) *models.Transaction {
	t.Helper()
	bill, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:      models.TransactionTypeBill,
		Reference: reference,
		Date:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ContactId: f.vendor.ID,
		LineItems: []workflow.NewLineItem{
			{Description: "Supplies", Amount: amount, AccountId: f.expense},
		},
	})
	require.NoError(t, err)
	return bill
}

func (f *fixture) postCustomerDeposit(t *testing.T, reference string, amount decimal.Decimal) *models.Transaction {
	t.Helper()
	deposit, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:             models.TransactionTypeDeposit,
		Reference:        reference,
		Date:             time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ContactId:        f.customer.ID,
		DepositAccountId: f.bank,
		Amount:           amount,
	})
	require.NoError(t, err)
	return deposit
}

func (f *fixture) reload(t *testing.T, id int) *models.Transaction {
	t.Helper()
	transaction, err := models.GetTransaction(f.ctx, id)
	require.NoError(t, err)
	return transaction
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, money(want).Equal(got), "want %s got %s", want, got.StringFixed(2))
}
