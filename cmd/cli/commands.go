package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/bankledger/internal/adapter/http/middleware"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/config"
	"github.com/iho/bankledger/internal/infrastructure/postgres"
)

func tokenCmd() *cobra.Command {
	var (
		user   string
		role   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return config.ErrMissingJWTSecret
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(domain.User{ID: user, Role: domain.Role(role)})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID carried as the token subject")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleClient), "Role: client or banker")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func transferCmd(opts *options) *cobra.Command {
	var (
		to     string
		amount string
		key    string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer money to another account by IBAN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(opts.timeout)
			defer cancel()

			var out map[string]string
			err := newAPIClient(opts).do(ctx, http.MethodPost, "/api/v1/transfer",
				idempotencyHeaders(key),
				map[string]string{"receiver_iban": to, "amount": amount}, &out)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), out["message"])
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Receiver IBAN")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 25.50")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key (random when empty)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

// movementCmd builds the withdraw and deposit commands, which differ only in path.
func movementCmd(opts *options, name, short string) *cobra.Command {
	var (
		amount string
		key    string
	)

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(opts.timeout)
			defer cancel()

			var out map[string]string
			err := newAPIClient(opts).do(ctx, http.MethodPost, "/api/v1/"+name,
				idempotencyHeaders(key),
				map[string]string{"amount": amount}, &out)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), out["detail"])
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 25.50")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key (random when empty)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func transactionsCmd(opts *options) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transaction history visible to the caller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(opts.timeout)
			defer cancel()

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			var out []map[string]any
			if err := newAPIClient(opts).do(ctx, http.MethodGet, "/api/v1/transactions?"+q.Encode(), nil, nil, &out); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultPageSize, "Maximum records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")

	return cmd
}

func accountCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Client account operations",
	}

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open an account for the caller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(opts.timeout)
			defer cancel()

			var out map[string]any
			if err := newAPIClient(opts).do(ctx, http.MethodPost, "/api/v1/client/account", idempotencyHeaders(""), map[string]string{}, &out); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the caller's account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(opts.timeout)
			defer cancel()

			var out map[string]any
			err := newAPIClient(opts).do(ctx, http.MethodGet, "/api/v1/client/account", nil, nil, &out)
			if isStatus(err, http.StatusNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No account yet. Run `account open` first.")
				return nil
			}
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.AddCommand(openCmd, showCmd)

	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := requestContext(opts.timeout)
			defer cancel()

			var result struct {
				TotalBalance string `json:"total_balance"`
				NetRecorded  string `json:"net_recorded"`
				Consistent   bool   `json:"consistent"`
			}
			if err := newAPIClient(opts).do(ctx, http.MethodGet, "/api/v1/banker/ledger/consistency", nil, nil, &result); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Total balance: %s\n", result.TotalBalance)
			fmt.Fprintf(w, "Net recorded:  %s\n", result.NetRecorded)
			if !result.Consistent {
				fmt.Fprintln(w, "Consistency check FAILED")
				return errors.New("ledger is inconsistent")
			}

			fmt.Fprintln(w, "Consistency check PASSED")
			return nil
		},
	}

	cmd.AddCommand(consistencyCmd)

	return cmd
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if databaseURL != "" && path != "" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if databaseURL == "" {
				databaseURL = cfg.DatabaseURL
			}
			if path == "" {
				path = cfg.MigrationsPath
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()

			switch args[0] {
			case "down":
				return postgres.RunMigrationsDown(databaseURL, path, logger)
			case "version":
				status, err := postgres.MigrationVersion(databaseURL, path, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", status.Version, status.Dirty)
				return nil
			}
			return postgres.RunMigrations(databaseURL, path, logger)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to $DATABASE_URL)")
	cmd.Flags().StringVar(&path, "path", "", "Migrations directory (defaults to $MIGRATIONS_PATH)")

	return cmd
}

// idempotencyHeaders returns the key header, generating a key when none is given.
func idempotencyHeaders(key string) map[string]string {
	if key == "" {
		key = uuid.NewString()
	}
	return map[string]string{middleware.IdempotencyKeyHeader: key}
}
