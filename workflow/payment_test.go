package workflow_test

import (
	"testing"
	"time"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/jaytrivedi1/vedo_books_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Cash plus an existing deposit settle an invoice; the surplus stays on the
// payment as a positive leftover.
func TestApplyPayment_CashPlusCreditWithLeftover(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-100", money("500.00"))
	deposit := f.postCustomerDeposit(t, "DEP-100", money("200.00"))

	payment, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:             models.TransactionTypePayment,
		Reference:        "PAY-100",
		Date:             time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		ContactId:        f.customer.ID,
		DepositAccountId: f.bank,
		Amount:           money("400.00"),
		Credits: []workflow.CreditContribution{
			{CreditId: deposit.ID, Amount: money("200.00")},
		},
		Allocations: []workflow.Allocation{
			{InvoiceId: invoice.ID, Amount: money("500.00")},
		},
	})
	require.NoError(t, err)

	// 400 cash + 200 credit funded 500; 100 remains usable
	requireMoney(t, "100.00", payment.Balance)
	require.Equal(t, models.TransactionStatusUnappliedCredit, payment.Status)

	invoice = f.reload(t, invoice.ID)
	requireMoney(t, "0.00", invoice.Balance)
	require.Equal(t, models.TransactionStatusPaid, invoice.Status)

	deposit = f.reload(t, deposit.ID)
	requireMoney(t, "0.00", deposit.Balance)
	require.Equal(t, models.TransactionStatusCompleted, deposit.Status)

	applications, err := models.GetApplicationsByPayment(f.ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, applications, 1)
	requireMoney(t, "500.00", applications[0].AmountApplied)
}

func TestApplyPayment_PartialLeavesInvoicePartial(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-110", money("500.00"))
	_, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:             models.TransactionTypePayment,
		Reference:        "PAY-110",
		Date:             time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		ContactId:        f.customer.ID,
		DepositAccountId: f.bank,
		Amount:           money("200.00"),
		Allocations:      []workflow.Allocation{{InvoiceId: invoice.ID, Amount: money("200.00")}},
	})
	require.NoError(t, err)

	invoice = f.reload(t, invoice.ID)
	requireMoney(t, "300.00", invoice.Balance)
	require.Equal(t, models.TransactionStatusPartial, invoice.Status)
}

// Over-application fails atomically: the payment, its entries and any
// application rows must all be absent afterwards.
func TestApplyPayment_OverApplicationWritesNothing(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-120", money("100.00"))
	_, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:             models.TransactionTypePayment,
		Reference:        "PAY-120",
		Date:             time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		ContactId:        f.customer.ID,
		DepositAccountId: f.bank,
		Amount:           money("150.00"),
		Allocations:      []workflow.Allocation{{InvoiceId: invoice.ID, Amount: money("150.00")}},
	})
	var overApplication *utils.OverApplicationError
	require.ErrorAs(t, err, &overApplication)
	require.Equal(t, invoice.ID, overApplication.InvoiceId)
	requireMoney(t, "100.00", overApplication.Remaining)
	requireMoney(t, "150.00", overApplication.Requested)

	invoice = f.reload(t, invoice.ID)
	requireMoney(t, "100.00", invoice.Balance)
	require.Equal(t, models.TransactionStatusOpen, invoice.Status)

	applications, err := models.GetApplicationsByInvoice(f.ctx, invoice.ID)
	require.NoError(t, err)
	require.Empty(t, applications)

	var count int64
	require.NoError(t, config.GetDB().Model(&models.Transaction{}).
		Where("company_id = ? AND reference = ?", f.company, "PAY-120").
		Count(&count).Error)
	require.Zero(t, count)
}

// An existing credit memo applies directly against an invoice.
func TestApplyCredit_CreditMemoSettlesInvoice(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-130", money("250.00"))
	memo, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:      models.TransactionTypeCustomerCredit,
		Reference: "CN-130",
		Date:      time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		ContactId: f.customer.ID,
		LineItems: []workflow.NewLineItem{
			{Description: "Returned goods", Amount: money("250.00"), AccountId: f.sales},
		},
	})
	require.NoError(t, err)
	requireMoney(t, "-250.00", memo.Balance)

	memo, err = workflow.ApplyCredit(f.ctx, memo.ID, []workflow.Allocation{
		{InvoiceId: invoice.ID, Amount: money("250.00")},
	})
	require.NoError(t, err)
	requireMoney(t, "0.00", memo.Balance)
	require.Equal(t, models.TransactionStatusCompleted, memo.Status)

	invoice = f.reload(t, invoice.ID)
	require.Equal(t, models.TransactionStatusPaid, invoice.Status)
}

func TestApplyCredit_OverDrawFails(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-140", money("500.00"))
	deposit := f.postCustomerDeposit(t, "DEP-140", money("100.00"))

	_, err := workflow.ApplyCredit(f.ctx, deposit.ID, []workflow.Allocation{
		{InvoiceId: invoice.ID, Amount: money("150.00")},
	})
	var overApplication *utils.OverApplicationError
	require.ErrorAs(t, err, &overApplication)

	deposit = f.reload(t, deposit.ID)
	requireMoney(t, "-100.00", deposit.Balance)
}

// Two bills funded by cash plus a pre-payment cheque. Each funding source
// splits across the bills in proportion to their amounts: 350 cash lands as
// 210/140, the 150 cheque as 90/60.
func TestApplyBillPayment_CompositeFundingSplit(t *testing.T) {
	f := newFixture(t)

	billA := f.postBill(t, "BILL-301", money("300.00"))
	billB := f.postBill(t, "BILL-302", money("200.00"))

	cheque, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:             models.TransactionTypeCheque,
		Reference:        "CHQ-300",
		Date:             time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		ContactId:        f.vendor.ID,
		DepositAccountId: f.bank,
		Amount:           money("150.00"),
	})
	require.NoError(t, err)

	applications, err := workflow.ApplyBillPayment(f.ctx, &workflow.BillPaymentInput{
		Reference:        "BP-300",
		Date:             time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		VendorId:         f.vendor.ID,
		PaymentAccountId: f.bank,
		CashAmount:       money("350.00"),
		ChequeIds:        []int{cheque.ID},
		Bills: []workflow.Allocation{
			{InvoiceId: billA.ID, Amount: money("300.00")},
			{InvoiceId: billB.ID, Amount: money("200.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, applications, 4)

	byPair := make(map[[2]int]decimal.Decimal)
	for _, application := range applications {
		byPair[[2]int{application.PaymentId, application.InvoiceId}] = application.AmountApplied
	}
	requireMoney(t, "90.00", byPair[[2]int{cheque.ID, billA.ID}])
	requireMoney(t, "60.00", byPair[[2]int{cheque.ID, billB.ID}])

	billA = f.reload(t, billA.ID)
	billB = f.reload(t, billB.ID)
	require.Equal(t, models.TransactionStatusPaid, billA.Status)
	require.Equal(t, models.TransactionStatusPaid, billB.Status)

	cheque = f.reload(t, cheque.ID)
	requireMoney(t, "0.00", cheque.Balance)
	require.Equal(t, models.TransactionStatusCompleted, cheque.Status)
}

func TestApplyBillPayment_FundsMustMatchRequested(t *testing.T) {
	f := newFixture(t)

	bill := f.postBill(t, "BILL-310", money("300.00"))
	_, err := workflow.ApplyBillPayment(f.ctx, &workflow.BillPaymentInput{
		Reference:        "BP-310",
		Date:             time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		VendorId:         f.vendor.ID,
		PaymentAccountId: f.bank,
		CashAmount:       money("250.00"),
		Bills:            []workflow.Allocation{{InvoiceId: bill.ID, Amount: money("300.00")}},
	})
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "bills", validationErr.Field)
}

// Recalculating from the application table is idempotent and corrects a
// manually corrupted balance.
func TestRecalculateBalance_IdempotentAndAuthoritative(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-400", money("500.00"))
	_, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:             models.TransactionTypePayment,
		Reference:        "PAY-400",
		Date:             time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		ContactId:        f.customer.ID,
		DepositAccountId: f.bank,
		Amount:           money("200.00"),
		Allocations:      []workflow.Allocation{{InvoiceId: invoice.ID, Amount: money("200.00")}},
	})
	require.NoError(t, err)

	// corrupt the stored balance, then re-derive
	require.NoError(t, config.GetDB().Model(&models.Transaction{}).
		Where("company_id = ? AND id = ?", f.company, invoice.ID).
		Updates(map[string]any{"balance": money("999.99"), "status": models.TransactionStatusPaid}).Error)

	require.NoError(t, workflow.RecalculateBalance(f.ctx, invoice.ID))
	invoice = f.reload(t, invoice.ID)
	requireMoney(t, "300.00", invoice.Balance)
	require.Equal(t, models.TransactionStatusPartial, invoice.Status)

	require.NoError(t, workflow.RecalculateBalance(f.ctx, invoice.ID))
	again := f.reload(t, invoice.ID)
	require.True(t, invoice.Balance.Equal(again.Balance))
	require.Equal(t, invoice.Status, again.Status)
}

// A credit consumed through a payment leaves no application row of its own,
// only the tagged line item on the payment. Recalculating the credit must
// still count that draw instead of resurrecting the consumed value.
func TestRecalculateBalance_CountsPaymentDraws(t *testing.T) {
	f := newFixture(t)

	invoice := f.postInvoice(t, "INV-410", money("600.00"))
	deposit := f.postCustomerDeposit(t, "DEP-410", money("1000.00"))

	_, err := workflow.PostTransaction(f.ctx, &workflow.NewTransaction{
		Type:        models.TransactionTypePayment,
		Reference:   "PAY-410",
		Date:        time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		ContactId:   f.customer.ID,
		Credits:     []workflow.CreditContribution{{CreditId: deposit.ID, Amount: money("600.00")}},
		Allocations: []workflow.Allocation{{InvoiceId: invoice.ID, Amount: money("600.00")}},
	})
	require.NoError(t, err)

	deposit = f.reload(t, deposit.ID)
	requireMoney(t, "-400.00", deposit.Balance)

	require.NoError(t, workflow.RecalculateBalance(f.ctx, deposit.ID))
	deposit = f.reload(t, deposit.ID)
	requireMoney(t, "-400.00", deposit.Balance)
	require.Equal(t, models.TransactionStatusUnappliedCredit, deposit.Status)
}
