package main

import (
	"fmt"

	"pushgate/internal/security"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a webhook secret",
	Long: `Generate a cryptographically random webhook secret.

Put the value in the webhook.secret field of pushgate.yaml (or the
PUSHGATE_WEBHOOK_SECRET environment variable) and in the webhook
configuration on GitHub. Both sides must share the exact same value.`,
	RunE: runSecret,
}

func runSecret(cmd *cobra.Command, args []string) error {
	secret, err := security.GenerateSecret()
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	fmt.Println(secret)
	return nil
}
