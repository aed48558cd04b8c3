package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/internal/delivery"
	"github.com/streamops/streamcheck/internal/secrets"
)

const preflightTimeout = 30 * time.Second

// NewPreflightCmd creates the preflight command.
func NewPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Verify config, AWS access, the API credential, and probe binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreflight()
		},
	}
}

func runPreflight() error {
	bold := color.New(color.Bold)
	_, _ = bold.Println("Streamcheck preflight:")

	cfg, err := config.Load(configDir)
	if err != nil {
		color.Red("  ✗ Config: %v", err)
		return fmt.Errorf("preflight failed")
	}
	color.Green("  ✓ Config valid")

	ctx, cancel := context.WithTimeout(context.Background(), preflightTimeout)
	defer cancel()

	failed := false

	resolver := secrets.NewResolver(cfg.Secret.Region)
	identity, err := resolver.Preflight(ctx)
	if err != nil {
		color.Red("  ✗ AWS identity: %v", err)
		failed = true
	} else {
		color.Green("  ✓ AWS identity: %s (account %s)", identity.ARN, identity.Account)
	}

	token := cfg.Secret.Token
	if token != "" {
		color.Yellow("  → API credential taken from config, Secrets Manager skipped")
	} else if token, err = resolver.BearerToken(ctx, cfg.Secret.Name, cfg.Secret.Key); err != nil {
		color.Red("  ✗ API credential %s: %v", cfg.Secret.Name, err)
		failed = true
	} else {
		color.Green("  ✓ API credential %s resolved", cfg.Secret.Name)
	}

	if token == "" {
		color.Yellow("  → Delivery API check skipped (no credential)")
	} else {
		client := delivery.NewClient(cfg.API.BaseURL, token,
			delivery.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout()}))
		if err := client.Ping(ctx); err != nil {
			color.Red("  ✗ Delivery API: %v", err)
			failed = true
		} else {
			color.Green("  ✓ Delivery API reachable at %s", cfg.API.BaseURL)
		}
	}

	for _, bin := range []string{cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			color.Red("  ✗ %s not found in PATH", bin)
			failed = true
		} else {
			color.Green("  ✓ %s available", bin)
		}
	}

	if failed {
		return fmt.Errorf("preflight found problems")
	}
	fmt.Println()
	color.Green("All preflight checks passed")
	return nil
}
