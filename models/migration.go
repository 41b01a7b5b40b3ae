package models

import "gorm.io/gorm"

// Migrate creates or updates the ledger-core tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Contact{},
		&SalesTax{},
		&Transaction{},
		&LineItem{},
		&LedgerEntry{},
		&PaymentApplication{},
	)
}
