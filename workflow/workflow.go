package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
)

// completionThreshold is the residue below which a balance is considered
// settled. Amounts smaller than one cent are rounding dust, not money.
var completionThreshold = decimal.New(1, -2)

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func companyIdFromContext(ctx context.Context) (string, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return "", utils.NewValidationError("company_id", "required")
	}
	return companyId, nil
}
