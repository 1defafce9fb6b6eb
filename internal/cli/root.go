// Package cli implements catalog-admin, the operator tool that seeds and bulk
// loads the catalog database.
package cli

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/product-catalog/internal/domain/auth"
	"github.com/xenking/product-catalog/internal/domain/product"
	"github.com/xenking/product-catalog/internal/storage/postgres"
)

// UserWriter upserts users.
type UserWriter interface {
	Upsert(ctx context.Context, u postgres.User) (int64, error)
}

// TokenWriter upserts access tokens.
type TokenWriter interface {
	Upsert(ctx context.Context, t auth.TokenInfo) error
}

// BulkInserter copies products in batches.
type BulkInserter interface {
	BulkInsert(ctx context.Context, fields []product.Fields) (int64, error)
}

// Stores are the write paths the admin commands use.
type Stores struct {
	Users    UserWriter
	Tokens   TokenWriter
	Products BulkInserter
	Close    func()
}

func (s *Stores) close() {
	if s.Close != nil {
		s.Close()
	}
}

// Connector opens the Stores for a database URL.
type Connector func(ctx context.Context, databaseURL string) (*Stores, error)

type rootOptions struct {
	databaseURL string
	tokenPepper string
	connect     Connector
}

func (o *rootOptions) open(ctx context.Context) (*Stores, error) {
	if o.databaseURL == "" {
		o.databaseURL = firstEnv("CATALOG_DATABASE_URL", "DATABASE_URL")
	}
	if o.databaseURL == "" {
		return nil, errors.New("database URL is required: set --database-url or CATALOG_DATABASE_URL")
	}
	return o.connect(ctx, o.databaseURL)
}

func (o *rootOptions) pepper() string {
	if o.tokenPepper == "" {
		o.tokenPepper = os.Getenv("CATALOG_TOKEN_PEPPER")
	}
	return o.tokenPepper
}

func newRootCmd(connect Connector) *cobra.Command {
	opts := &rootOptions{connect: connect}

	cmd := &cobra.Command{
		Use:           "catalog-admin",
		Short:         "Administer the product catalog database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or CATALOG_DATABASE_URL, DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.tokenPepper, "token-pepper", "", "HMAC pepper for access token hashing (or CATALOG_TOKEN_PEPPER)")

	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	return cmd
}

// Execute runs catalog-admin against PostgreSQL.
func Execute(ctx context.Context) error {
	return newRootCmd(connectPostgres).ExecuteContext(ctx)
}

func connectPostgres(ctx context.Context, databaseURL string) (*Stores, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &Stores{
		Users:    postgres.NewUserRepository(pool),
		Tokens:   postgres.NewTokenRepository(pool),
		Products: postgres.NewProductRepository(pool),
		Close:    pool.Close,
	}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
