// Package databasetest opens the postgres database used by integration tests.
// Tests are skipped unless TEST_DATABASE_DSN is set.
package databasetest

import (
	"os"
	"testing"

	"sale-service/pkg/database"

	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to TEST_DATABASE_DSN, migrates the schema and empties the
// sale tables.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping postgres integration test")
	}

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.Migrate(db, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if err := db.Exec("TRUNCATE sale_items, sales, invoice_sequences, products RESTART IDENTITY CASCADE").Error; err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
