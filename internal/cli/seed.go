package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/product-catalog/internal/domain/auth"
	"github.com/xenking/product-catalog/internal/storage/postgres"
)

type seedOptions struct {
	email      string
	password   string
	firstName  string
	lastName   string
	token      string
	tokenID    string
	bcryptCost int
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the test user and an access token for it",
		Long: "Upsert the test user and store an access token for them. " +
			"A random token is generated and printed when --token is not set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pepper := root.pepper()
			if pepper == "" {
				return errors.New("token pepper is required: set --token-pepper or CATALOG_TOKEN_PEPPER")
			}

			stores, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.close()

			generated := opts.token == ""
			if generated {
				if opts.token, err = generateToken(); err != nil {
					return err
				}
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(opts.password), opts.bcryptCost)
			if err != nil {
				return errors.Wrap(err, "hash password")
			}

			ctx := cmd.Context()
			userID, err := stores.Users.Upsert(ctx, postgres.User{
				FirstName:    opts.firstName,
				LastName:     opts.lastName,
				Email:        opts.email,
				PasswordHash: string(hash),
			})
			if err != nil {
				return errors.Wrap(err, "seed user")
			}
			slog.Info("upserted user", slog.Int64("id", userID), slog.String("email", opts.email))

			if err := stores.Tokens.Upsert(ctx, auth.TokenInfo{
				ID:        opts.tokenID,
				UserID:    userID,
				Name:      "Seeded token for " + opts.email,
				TokenHash: auth.HashToken(opts.token, []byte(pepper)),
			}); err != nil {
				return errors.Wrap(err, "seed access token")
			}
			slog.Info("upserted access token", slog.String("id", opts.tokenID), slog.Int64("user_id", userID))

			if generated {
				fmt.Fprintln(cmd.OutOrStdout(), opts.token)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "test@example.com", "Email of the seeded user")
	cmd.Flags().StringVar(&opts.password, "password", "password", "Password of the seeded user")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "Random", "First name of the seeded user")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "Tester", "Last name of the seeded user")
	cmd.Flags().StringVar(&opts.token, "token", "", "Plaintext access token to store (generated when empty)")
	cmd.Flags().StringVar(&opts.tokenID, "token-id", "default", "ID of the stored access token")
	cmd.Flags().IntVar(&opts.bcryptCost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for the password hash")

	return cmd
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate token")
	}
	return hex.EncodeToString(buf), nil
}
