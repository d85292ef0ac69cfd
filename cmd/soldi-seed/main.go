package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"soldi/internal/config"
	"soldi/internal/core"
	applog "soldi/internal/log"
	"soldi/internal/reports"
	"soldi/internal/storage"
)

const demoOwner int64 = 1

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentSeed})
	applog.SetDefault(logger)

	cfg := config.Load()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	if err := seed(ctx, repo, logger); err != nil {
		logger.Error("Seeding failed", "error", err)
		os.Exit(1)
	}

	rebuilder := reports.NewRebuilder(repo, repo)
	if err := rebuilder.Rebuild(ctx, demoOwner, nil); err != nil {
		logger.Error("Rebuild failed", "error", err, "owner_id", demoOwner)
		os.Exit(1)
	}

	logger.Info("Demo data seeded", "owner_id", demoOwner, "db", cfg.SQLiteDBPath)
}

func seed(ctx context.Context, repo *storage.SQLiteRepository, logger *applog.Logger) error {
	cashCat, err := repo.CreateCategory(ctx, demoOwner, core.KindBank, "Cash")
	if err != nil {
		return err
	}
	utilitiesCat, err := repo.CreateCategory(ctx, demoOwner, core.KindContact, "Utilities")
	if err != nil {
		return err
	}

	checking, err := repo.CreateEntity(ctx, demoOwner, core.KindBank, "Checking", cashCat)
	if err != nil {
		return err
	}
	savings, err := repo.CreateEntity(ctx, demoOwner, core.KindBank, "Savings", cashCat)
	if err != nil {
		return err
	}
	electricity, err := repo.CreateEntity(ctx, demoOwner, core.KindContact, "Electricity Co", utilitiesCat)
	if err != nil {
		return err
	}
	landlord, err := repo.CreateEntity(ctx, demoOwner, core.KindContact, "Landlord", 0)
	if err != nil {
		return err
	}
	etfPlan, err := repo.CreateEntity(ctx, demoOwner, core.KindSavingsPlan, "World ETF Plan", 0)
	if err != nil {
		return err
	}
	acmeStock, err := repo.CreateEntity(ctx, demoOwner, core.KindSecurity, "ACME Corp", 0)
	if err != nil {
		return err
	}

	postings := 0
	now := time.Now().UTC()
	year, _, _ := now.Date()

	// Two years of salary, rent and bills ending in the current month.
	for i := 23; i >= 0; i-- {
		month := time.Date(year, now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		bookings := []core.Posting{
			{OwnerID: demoOwner, Kind: core.KindBank, AccountID: checking, BookingDate: month.AddDate(0, 0, 1), Amount: decimal.RequireFromString("2850.00")},
			{OwnerID: demoOwner, Kind: core.KindBank, AccountID: savings, BookingDate: month.AddDate(0, 0, 2), Amount: decimal.RequireFromString("400.00")},
			{OwnerID: demoOwner, Kind: core.KindContact, ContactID: landlord, BookingDate: month.AddDate(0, 0, 3), Amount: decimal.RequireFromString("-950.00")},
			{OwnerID: demoOwner, Kind: core.KindContact, ContactID: electricity, BookingDate: month.AddDate(0, 0, 14), ValutaDate: month.AddDate(0, 0, 16), Amount: decimal.RequireFromString("-84.30")},
			{OwnerID: demoOwner, Kind: core.KindSavingsPlan, SavingsPlanID: etfPlan, BookingDate: month.AddDate(0, 0, 5), Amount: decimal.RequireFromString("250.00")},
		}
		for _, p := range bookings {
			if _, err := repo.AddPosting(ctx, p); err != nil {
				return err
			}
			postings++
		}
	}

	// One security purchase and a quarterly dividend with its fee and tax
	// legs sharing a group.
	buy := core.Posting{
		OwnerID:     demoOwner,
		Kind:        core.KindSecurity,
		SecurityID:  acmeStock,
		BookingDate: time.Date(year, now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -10, 3),
		Amount:      decimal.RequireFromString("-1500.00"),
		SubType:     core.SubTypeBuy,
		Quantity:    decimal.NullDecimal{Decimal: decimal.RequireFromString("12.5"), Valid: true},
	}
	if _, err := repo.AddPosting(ctx, buy); err != nil {
		return err
	}
	postings++

	for i := 3; i >= 1; i-- {
		group := uuid.New()
		payday := time.Date(year, now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -3*i, 10)
		legs := []core.Posting{
			{OwnerID: demoOwner, Kind: core.KindSecurity, SecurityID: acmeStock, BookingDate: payday, Amount: decimal.RequireFromString("42.50"), SubType: core.SubTypeDividend, GroupID: uuid.NullUUID{UUID: group, Valid: true}},
			{OwnerID: demoOwner, Kind: core.KindSecurity, SecurityID: acmeStock, BookingDate: payday, Amount: decimal.RequireFromString("-1.20"), SubType: core.SubTypeFee, GroupID: uuid.NullUUID{UUID: group, Valid: true}},
			{OwnerID: demoOwner, Kind: core.KindSecurity, SecurityID: acmeStock, BookingDate: payday, Amount: decimal.RequireFromString("-6.35"), SubType: core.SubTypeTax, GroupID: uuid.NullUUID{UUID: group, Valid: true}},
		}
		for _, p := range legs {
			if _, err := repo.AddPosting(ctx, p); err != nil {
				return err
			}
			postings++
		}
	}

	logger.Info("Postings created", applog.FieldPostings, postings)
	return nil
}
