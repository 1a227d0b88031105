package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"quotepix/internal/infra"
	"quotepix/internal/infra/credentials"
)

// platformkey persists the shared platform generation credential that funds
// grace-pool renders for tenants without their own key.
func main() {
	_ = godotenv.Load()

	var keyFlag string
	flag.StringVar(&keyFlag, "key", "", "generation API key (falls back to GEN_API_KEY)")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEN_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "generation api key is required via -key or GEN_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "platformkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.SetPlatformGenerationKey(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist platform key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("platform generation key stored")
}
