package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pushgate/internal/config"
	"pushgate/internal/security"
	"pushgate/internal/setup"

	"github.com/spf13/cobra"
)

var (
	setupConfigFile string
	setupRepo       string
	setupHookURL    string
	setupToken      string
	setupSecret     string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register the webhook on a GitHub repository",
	Long: `Register the push webhook on a GitHub repository.

The command is idempotent: a webhook that already points at the same URL is
left untouched. A personal access token with repository admin rights is
required, either via --token or the PUSHGATE_GITHUB_TOKEN / GITHUB_TOKEN
environment variables.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVarP(&setupConfigFile, "config", "c", getEnvOrDefault("PUSHGATE_CONFIG_FILE", ""), "Path to pushgate.yaml configuration file")
	setupCmd.Flags().StringVar(&setupRepo, "repo", "", "GitHub repository in owner/name form")
	setupCmd.Flags().StringVar(&setupHookURL, "hook-url", "", "Public URL of the deploy hook endpoint")
	setupCmd.Flags().StringVar(&setupToken, "token", "", "GitHub personal access token")
	setupCmd.Flags().StringVar(&setupSecret, "secret", "", "Webhook secret (defaults to the configured one)")
	_ = setupCmd.MarkFlagRequired("repo")
	_ = setupCmd.MarkFlagRequired("hook-url")
}

func runSetup(cmd *cobra.Command, args []string) error {
	token := setupToken
	if token == "" {
		token = getEnvOrDefault("PUSHGATE_GITHUB_TOKEN", os.Getenv("GITHUB_TOKEN"))
	}
	if token == "" {
		return fmt.Errorf("no GitHub token provided (use --token or PUSHGATE_GITHUB_TOKEN)")
	}

	secret := setupSecret
	if secret == "" {
		cfg, err := config.Load(setupConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		secret = cfg.Webhook.Secret
	}
	if secret == "" {
		return fmt.Errorf("no webhook secret available (set webhook.secret or use --secret)")
	}
	if err := security.ValidateSecret(secret); err != nil {
		return fmt.Errorf("webhook secret rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := setup.NewClient(ctx, token)
	created, err := setup.RegisterWebhook(ctx, client, setup.Options{
		OwnerRepo: setupRepo,
		HookURL:   setupHookURL,
		Secret:    secret,
	})
	if err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}

	if created {
		fmt.Printf("Webhook created on %s for %s\n", setupRepo, setupHookURL)
	} else {
		fmt.Printf("Webhook already exists on %s for %s\n", setupRepo, setupHookURL)
	}
	return nil
}
