package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rentwheels/carshare-backend/internal/config"
	"github.com/rentwheels/carshare-backend/internal/database"
	"github.com/rentwheels/carshare-backend/internal/models"
	"github.com/rentwheels/carshare-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// Compares every cached wallet balance against its ledger sum. With -fix the
// drifted balances are reset to the ledger, recorded as an admin action.
func main() {
	var dbURLFlag string
	var fix bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&fix, "fix", false, "reset drifted balances to the ledger sum")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	// Minimal config, the full app config would demand JWT and Razorpay secrets
	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	users := database.NewUserRepository(db.DB)
	wallets := services.NewWalletService(
		database.NewTxManager(db.DB),
		users,
		database.NewWalletRepository(db.DB),
		database.NewBankAccountRepository(db.DB),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// The maintenance operator acts with admin rights
	operator := models.Actor{Role: models.RoleAdmin}

	var checked, drifted int
	for _, role := range []models.AccountRole{models.RoleUser, models.RoleHost} {
		ids, err := users.ListIDsByRole(ctx, role)
		if err != nil {
			log.Fatalf("failed to list %s accounts: %v", role, err)
		}
		for _, id := range ids {
			check, err := wallets.VerifyBalance(ctx, id)
			if err != nil {
				log.Fatalf("failed to verify wallet %s: %v", id, err)
			}
			checked++
			if check.Consistent {
				continue
			}
			drifted++
			fmt.Printf("%s  %-5s cached=%s ledger=%s\n", id, role, check.CachedBalance.StringFixed(2), check.LedgerBalance.StringFixed(2))
			if fix {
				if _, err := wallets.ReconcileBalance(ctx, operator, id); err != nil {
					log.Fatalf("failed to reconcile wallet %s: %v", id, err)
				}
			}
		}
	}

	fmt.Printf("Checked %d wallets, %d drifted", checked, drifted)
	if fix && drifted > 0 {
		fmt.Print(" (reconciled)")
	}
	fmt.Println()
	if drifted > 0 && !fix {
		os.Exit(1)
	}
}
