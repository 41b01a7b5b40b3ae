package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/jaytrivedi1/vedo_books_backend/workflow"
	"gorm.io/gorm"
)

// Older data recorded payment allocations only as free text on the ledger
// entries ("Payment for invoice #123"). This tool parses those descriptions
// into payment_applications rows and re-derives the affected balances, so
// the application table becomes the single source of truth for legacy rows
// too.

var invoiceRef = regexp.MustCompile(`(?i)invoice\s+#?([A-Za-z0-9-]+)`)

func main() {
	companyID := flag.String("company-id", "", "Optional: backfill only one company. If empty, backfills all companies.")
	dryRun := flag.Bool("dry-run", false, "Print what would be created without writing anything.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	var companies []string
	query := db.WithContext(ctx).Model(&models.Transaction{}).Distinct("company_id")
	if strings.TrimSpace(*companyID) != "" {
		query = query.Where("company_id = ?", strings.TrimSpace(*companyID))
	}
	if err := query.Pluck("company_id", &companies).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list companies: %v\n", err)
		os.Exit(1)
	}

	for _, company := range companies {
		if err := backfillCompany(ctx, db, company, *dryRun); err != nil {
			fmt.Fprintf(os.Stderr, "company %s backfill failed: %v\n", company, err)
			continue
		}
	}

	fmt.Println("Backfill complete")
}

func backfillCompany(ctx context.Context, db *gorm.DB, companyId string, dryRun bool) error {
	ctx = utils.SetCompanyIdInContext(ctx, companyId)

	// funding transactions with no application rows are backfill candidates
	var payments []models.Transaction
	err := db.WithContext(ctx).
		Where("company_id = ? AND type IN ?", companyId,
			[]models.TransactionType{models.TransactionTypePayment, models.TransactionTypeCheque}).
		Where("id NOT IN (?)", db.Model(&models.PaymentApplication{}).
			Select("payment_id").Where("company_id = ?", companyId)).
		Order("id").Find(&payments).Error
	if err != nil {
		return err
	}

	created := 0
	for _, payment := range payments {
		entries, err := models.GetLedgerEntries(ctx, payment.ID)
		if err != nil {
			return err
		}

		touched := make(map[int]bool)
		for _, entry := range entries {
			match := invoiceRef.FindStringSubmatch(entry.Description)
			if match == nil {
				continue
			}
			// legacy descriptions carry the invoice reference, which is a
			// per-company string independent of the row id
			invoiceId, err := resolveInvoiceId(ctx, db, companyId, match[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "company %s payment %d: invoice %q not found, skipping\n",
					companyId, payment.ID, match[1])
				continue
			}
			if touched[invoiceId] {
				continue
			}
			amount := entry.Credit
			if amount.IsZero() {
				amount = entry.Debit
			}
			if amount.IsZero() {
				continue
			}

			fmt.Printf("company=%s payment=%d -> invoice=%d amount=%s\n",
				companyId, payment.ID, invoiceId, amount.StringFixed(2))
			touched[invoiceId] = true
			if dryRun {
				continue
			}

			application := models.PaymentApplication{
				CompanyId:     companyId,
				PaymentId:     payment.ID,
				InvoiceId:     invoiceId,
				AmountApplied: amount,
			}
			if err := db.WithContext(ctx).Create(&application).Error; err != nil {
				return err
			}
			created++

			if err := workflow.RecalculateBalance(ctx, invoiceId); err != nil {
				fmt.Fprintf(os.Stderr, "company %s: invoice %d recalculation failed: %v\n", companyId, invoiceId, err)
			}
		}
		if len(touched) > 0 && !dryRun {
			if err := workflow.RecalculateBalance(ctx, payment.ID); err != nil {
				fmt.Fprintf(os.Stderr, "company %s: payment %d recalculation failed: %v\n", companyId, payment.ID, err)
			}
		}
	}

	fmt.Printf("company=%s created %d application rows\n", companyId, created)
	return nil
}

func resolveInvoiceId(ctx context.Context, db *gorm.DB, companyId string, reference string) (int, error) {
	var invoice models.Transaction
	err := db.WithContext(ctx).
		Where("company_id = ? AND type IN ? AND reference = ?", companyId,
			[]models.TransactionType{models.TransactionTypeInvoice, models.TransactionTypeBill}, reference).
		First(&invoice).Error
	if err != nil {
		return 0, err
	}
	return invoice.ID, nil
}
