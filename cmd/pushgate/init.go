package main

import (
	"fmt"
	"os"
	"path/filepath"

	"pushgate/internal/config"
	"pushgate/internal/security"
	"pushgate/pkg/templates"

	"github.com/spf13/cobra"
)

var (
	initOutput  string
	initSystemd string
	initUser    string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter pushgate.yaml with a freshly generated webhook secret.

With --systemd a matching service unit is written as well. Existing files
are never overwritten unless --force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", config.ConfigFileName, "Where to write the config file")
	initCmd.Flags().StringVar(&initSystemd, "systemd", "", "Also write a systemd unit to the given path")
	initCmd.Flags().StringVar(&initUser, "user", "deploybot", "User the systemd unit runs as")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initForce {
		if _, err := os.Stat(initOutput); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
		}
	}

	secret, err := security.GenerateSecret()
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}

	rendered, err := templates.RenderConfigFile(templates.ConfigData{
		Host:       config.DefaultHost,
		Port:       config.DefaultPort,
		Secret:     secret,
		Command:    config.DefaultCommand,
		LogFile:    config.DefaultLogFile,
		LedgerPath: config.DefaultLedgerPath,
	})
	if err != nil {
		return fmt.Errorf("failed to render config template: %w", err)
	}

	// The file carries the secret, keep it out of reach of other users
	file, err := security.CreateSecureFile(initOutput, security.PermConfigFile)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(rendered); err != nil {
		file.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote %s with a generated webhook secret\n", initOutput)
	fmt.Printf("Configure the same secret on GitHub, or run 'pushgate setup'\n")

	if initSystemd != "" {
		if err := writeSystemdUnit(initSystemd, initOutput); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", initSystemd)
	}

	return nil
}

func writeSystemdUnit(unitPath, configPath string) error {
	if !initForce {
		if _, err := os.Stat(unitPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", unitPath)
		}
	}

	binaryPath, err := os.Executable()
	if err != nil {
		binaryPath = "/usr/local/bin/pushgate"
	}
	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		absConfig = configPath
	}
	workingDir, err := os.Getwd()
	if err != nil {
		workingDir = "/srv"
	}

	unit, err := templates.RenderSystemdService(templates.UnitData{
		User:       initUser,
		WorkingDir: workingDir,
		BinaryPath: binaryPath,
		ConfigPath: absConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to render systemd template: %w", err)
	}

	// The unit holds no secret, only paths
	if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
		return fmt.Errorf("failed to write systemd unit: %w", err)
	}
	return nil
}
