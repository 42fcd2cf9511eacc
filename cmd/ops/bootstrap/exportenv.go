package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

// localDefaults are written alongside the exported secrets so the file is a
// complete local configuration.
var localDefaults = map[string]string{
	"APP_ENV":                      "local",
	"LOG_LEVEL":                    "debug",
	"PRIMARY_CHANNEL":              "email",
	"METRICS_BACKEND":              "prometheus",
	"ESCALATION_INTERVAL_MINUTES":  "15",
	"ESCALATION_REMINDER_TIMEZONE": "UTC",
}

type ExportEnvConfig struct {
	OutputPath string
	SSM        *SSMManager
	Inventory  []Parameter
	Stderr     io.Writer
}

// ExportEnvFile reads every stored parameter back and writes them, plus the
// local defaults, as a dotenv file with 0600 permissions. Parameters that do
// not exist are left out.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	env := make(map[string]string, len(localDefaults)+len(cfg.Inventory))
	for k, v := range localDefaults {
		env[k] = v
	}

	for _, p := range cfg.Inventory {
		path := cfg.SSM.SSMPath(p.SSMKey)
		exists, err := cfg.SSM.ParameterExists(ctx, path)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Fprintf(cfg.Stderr, "  not stored, skipping: %s\n", path)
			continue
		}
		value, err := cfg.SSM.GetParameterValue(ctx, path)
		if err != nil {
			return err
		}
		env[p.EnvVar] = value
	}

	if err := godotenv.Write(env, cfg.OutputPath); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.OutputPath, err)
	}
	// godotenv creates the file world-readable.
	if err := os.Chmod(cfg.OutputPath, 0o600); err != nil {
		return fmt.Errorf("restricting permissions on %s: %w", cfg.OutputPath, err)
	}
	return nil
}
