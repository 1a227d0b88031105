package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"quotepix/internal/infra"
	"quotepix/internal/sqlinline"
)

// tenantcredits assigns a plan tier and grace credit grant to a tenant.
func main() {
	_ = godotenv.Load()

	var (
		slugFlag    string
		planFlag    string
		creditsFlag int
	)
	flag.StringVar(&slugFlag, "slug", "", "tenant slug to update")
	flag.StringVar(&planFlag, "plan", "tier1", "plan tier to assign")
	flag.IntVar(&creditsFlag, "credits", 5, "total activation grace credits to grant")
	flag.Parse()

	slug := strings.TrimSpace(slugFlag)
	plan := strings.TrimSpace(strings.ToLower(planFlag))
	if slug == "" {
		exitWithError(errors.New("-slug is required"))
	}
	if plan == "" {
		exitWithError(errors.New("-plan is required"))
	}
	if creditsFlag < 0 {
		exitWithError(errors.New("-credits must not be negative"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to create pool: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "tenantcredits").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	row := runner.QueryRow(ctx, sqlinline.QSetTenantPlan, slug, plan, creditsFlag)
	var (
		id           string
		tier         string
		granted, used int
	)
	if err := row.Scan(&id, &tier, &granted, &used); err != nil {
		if infra.IsNoRows(err) {
			exitWithError(fmt.Errorf("tenant %q not found", slug))
		}
		exitWithError(fmt.Errorf("update tenant: %w", err))
	}

	fmt.Printf("tenant %s: plan=%s credits=%d used=%d\n", id, tier, granted, used)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "tenantcredits: %v\n", err)
	os.Exit(1)
}
