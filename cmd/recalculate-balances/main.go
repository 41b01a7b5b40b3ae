package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jaytrivedi1/vedo_books_backend/config"
	"github.com/jaytrivedi1/vedo_books_backend/models"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/jaytrivedi1/vedo_books_backend/workflow"
)

func main() {
	companyID := flag.String("company-id", "", "Optional: recalculate only one company. If empty, sweeps all companies.")
	transactionID := flag.Int("transaction-id", 0, "Optional: recalculate a single transaction (requires -company-id).")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if *transactionID > 0 {
		if strings.TrimSpace(*companyID) == "" {
			fmt.Fprintln(os.Stderr, "-transaction-id requires -company-id")
			os.Exit(1)
		}
		ctx = utils.SetCompanyIdInContext(ctx, strings.TrimSpace(*companyID))
		if err := workflow.RecalculateBalance(ctx, *transactionID); err != nil {
			fmt.Fprintf(os.Stderr, "transaction %d recalculation failed: %v\n", *transactionID, err)
			os.Exit(1)
		}
		fmt.Printf("Recalculated transaction %d\n", *transactionID)
		return
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
	if len(companies) == 0 {
		fmt.Fprintln(os.Stderr, "no companies found to recalculate")
		return
	}

	for _, company := range companies {
		companyCtx := utils.SetCompanyIdInContext(ctx, company)
		fmt.Printf("Recalculating balances company=%s\n", company)
		failed, err := workflow.RecalculateAll(companyCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "company %s sweep failed: %v\n", company, err)
			continue
		}
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "company %s: %d transactions failed, see log\n", company, failed)
		}
	}

	fmt.Println("Recalculation complete")
}
