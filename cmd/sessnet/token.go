package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/server"
)

func tokenCmd() *cobra.Command {
	var (
		secret  string
		issuer  string
		payload sessnet.TokenPayload
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 handshake token",
		Long: `Mint an HS256 token a client can pass in its handshake.

Examples:
  sessnet token --secret s3cret --user alice
  sessnet token --secret s3cret --user bob --session S1 --peer-type admin --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			if payload.UserID == "" {
				return fmt.Errorf("--user is required")
			}
			token, err := server.NewJWTVerifier([]byte(secret), issuer).Mint(payload, ttl)
			if err != nil {
				return fmt.Errorf("mint token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "HS256 secret shared with the server")
	f.StringVar(&issuer, "issuer", "", "Token issuer")
	f.StringVarP(&payload.UserID, "user", "u", "", "User id")
	f.StringVar(&payload.SessionID, "session", "", "Restrict the token to one session id")
	f.StringVar(&payload.PeerType, "peer-type", "", "Peer type")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
