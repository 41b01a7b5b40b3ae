package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var connectOnce sync.Once

func testContext(t *testing.T) (context.Context, string) {
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
	return utils.SetCompanyIdInContext(context.Background(), company), company
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Legacy descriptions name the invoice by reference, not by row id. The
// backfill must resolve "invoice #INV-77" against transactions.reference
// within the company and attach the allocation to that row.
func TestBackfillCompany_ResolvesInvoiceReference(t *testing.T) {
	ctx, company := testContext(t)
	db := config.GetDB()

	invoice, err := models.CreateTransaction(ctx, &models.Transaction{
		Type:      models.TransactionTypeInvoice,
		Reference: "INV-77",
		Date:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount:    dec("100.00"),
		Balance:   dec("100.00"),
		Status:    models.TransactionStatusOpen,
		LedgerEntries: []models.LedgerEntry{
			{AccountId: 11, Debit: dec("100.00")},
			{AccountId: 12, Credit: dec("100.00")},
		},
	})
	require.NoError(t, err)

	payment, err := models.CreateTransaction(ctx, &models.Transaction{
		Type:      models.TransactionTypePayment,
		Reference: "PAY-77",
		Date:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		Amount:    dec("100.00"),
		Balance:   dec("100.00"),
		Status:    models.TransactionStatusUnappliedCredit,
		LedgerEntries: []models.LedgerEntry{
			{AccountId: 13, Debit: dec("100.00")},
			{AccountId: 11, Credit: dec("100.00"), Description: "Payment for invoice #INV-77"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, backfillCompany(ctx, db, company, false))

	applications, err := models.GetApplicationsByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, applications, 1)
	require.Equal(t, invoice.ID, applications[0].InvoiceId)
	require.True(t, dec("100.00").Equal(applications[0].AmountApplied))

	invoice, err = models.GetTransaction(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusPaid, invoice.Status)
	require.True(t, invoice.Balance.IsZero())

	payment, err = models.GetTransaction(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, payment.Status)
}

func TestBackfillCompany_SkipsUnknownReference(t *testing.T) {
	ctx, company := testContext(t)
	db := config.GetDB()

	payment, err := models.CreateTransaction(ctx, &models.Transaction{
		Type:      models.TransactionTypePayment,
		Reference: "PAY-78",
		Date:      time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Amount:    dec("50.00"),
		Balance:   dec("50.00"),
		Status:    models.TransactionStatusUnappliedCredit,
		LedgerEntries: []models.LedgerEntry{
			{AccountId: 13, Debit: dec("50.00")},
			{AccountId: 11, Credit: dec("50.00"), Description: "Payment for invoice #INV-GONE"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, backfillCompany(ctx, db, company, false))

	applications, err := models.GetApplicationsByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Empty(t, applications)
}
