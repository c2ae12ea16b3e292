package cli

import (
	"fmt"
	"strings"
	"time"

	"campus-portal-service/internal/auth"
	"campus-portal-service/internal/config"
	"campus-portal-service/internal/domain"
	"github.com/spf13/cobra"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"
)

// NewTokenCmd issues an attendance token with the configured secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		courseID string
		pngPath  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed attendance token for a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			signer, err := newSigner(cfg)
			if err != nil {
				return err
			}
			payload, token, err := signer.Issue(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(out, "course=%s expires=%s\n", payload.CourseID,
				time.UnixMilli(payload.ExpiresAt).UTC().Format(time.RFC3339))
			if pngPath != "" {
				if err := qrcode.WriteFile(token, qrcode.Medium, 256, pngPath); err != nil {
					return fmt.Errorf("write qr png: %w", err)
				}
				fmt.Fprintf(out, "qr written to %s\n", pngPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "course id")
	cmd.Flags().StringVar(&pngPath, "png", "", "also write the token as a QR PNG")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

// NewVerifyCmd checks a scanned token against a course.
func NewVerifyCmd(configPath *string) *cobra.Command {
	var courseID string
	cmd := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify an attendance token for a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			signer, err := newSigner(cfg)
			if err != nil {
				return err
			}
			payload, err := signer.Verify(strings.TrimSpace(args[0]), courseID)
			if err != nil {
				return fmt.Errorf("%s (%w)", domain.UserMessage(err), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: course=%s session=%s nonce=%s expires=%s\n",
				payload.CourseID, payload.SessionID, payload.Nonce,
				time.UnixMilli(payload.ExpiresAt).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "expected course id")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

// NewHashPasswordCmd prints a bcrypt hash for the auth.users config.
func NewHashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print a bcrypt hash for a config user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
