package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/liquor-inventory/internal/auth"
	"github.com/example/liquor-inventory/internal/config"
)

// tokengen mints an API access token signed with JWT_SECRET
func main() {
	accountID := flag.Int64("account", 0, "account id the token acts for")
	operator := flag.String("operator", "", "name of the operator the token is issued to")
	role := flag.String("role", auth.RoleOperator, "role: operator or viewer")
	ttl := flag.Duration("ttl", 0, "token lifetime (default JWT_TOKEN_EXPIRY)")
	flag.Parse()

	if err := run(*accountID, *operator, *role, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run(accountID int64, operator, role string, ttl time.Duration) error {
	if accountID <= 0 {
		return errors.New("-account must be positive")
	}
	if operator == "" {
		return errors.New("-operator is required")
	}
	if role != auth.RoleOperator && role != auth.RoleViewer {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenExpiry
	}

	token, expiresAt, err := auth.NewJWTService(cfg.Auth.JWTSecret, ttl).GenerateAccessToken(accountID, operator, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
