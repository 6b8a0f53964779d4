package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"csreply-backend/internal/shared/auth"
)

var tokenFlags struct {
	subject string
	name    string
	role    string
	ttl     time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator bearer token signed with JWT_SECRET",
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.subject, "sub", "", "Operator id recorded on approvals (required)")
	f.StringVar(&tokenFlags.name, "name", "", "Display name")
	f.StringVar(&tokenFlags.role, "role", "operator", "Role claim")
	f.DurationVar(&tokenFlags.ttl, "ttl", 12*time.Hour, "Token lifetime")

	_ = tokenCmd.MarkFlagRequired("sub")
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenFlags.ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}
	cfg := loadConfig()
	secret, err := auth.Secret(cfg.Env, cfg.JWTSecret)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	claims := auth.OperatorClaims{
		Name: tokenFlags.name,
		Role: tokenFlags.role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenFlags.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenFlags.ttl)),
		},
	}
	token, err := auth.SignJWT(secret, claims)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
