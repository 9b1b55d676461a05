package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dreamdecode/internal/usertoken"
)

func newTokenCommand() *cobra.Command {
	var (
		secret   string
		issuer   string
		audience string
		email    string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a development access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			verifier, err := usertoken.NewVerifier(usertoken.Config{Secret: secret, Issuer: issuer, Audience: audience})
			if err != nil {
				return err
			}
			token, err := verifier.Issue(args[0], email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Token issuer")
	cmd.Flags().StringVar(&audience, "audience", "", "Token audience")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
