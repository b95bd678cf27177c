package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/probe"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

var (
	checkKind     string
	checkAttempts int
	checkTimeout  time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Check an endpoint once, with retries, and print the result",
	Args:  cobra.ExactArgs(1),
	Run:   runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkKind, "kind", "http", "monitor kind (http, grpc)")
	checkCmd.Flags().IntVar(&checkAttempts, "attempts", 3, "maximum attempts")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "per-attempt timeout")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if isDebug {
		level = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{Level: level, TimeFormat: time.RFC3339})

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = checkAttempts
	if err := policy.Validate(); err != nil {
		slog.Error("Invalid retry settings", "error", err)
		os.Exit(1)
	}

	checker := probe.NewChecker(policy)
	defer func() {
		_ = checker.Close()
	}()

	m := &domain.Monitor{
		ID:      args[0],
		Name:    args[0],
		Kind:    domain.MonitorKind(checkKind),
		URL:     args[0],
		Timeout: checkTimeout,
		Active:  true,
	}

	res := checker.Check(context.Background(), m)
	fmt.Printf("status:   %s\n", res.Status)
	fmt.Printf("latency:  %s\n", res.Latency.Round(time.Millisecond))
	fmt.Printf("attempts: %d\n", res.Attempts)
	if res.StatusCode != 0 {
		fmt.Printf("code:     %d\n", res.StatusCode)
	}
	if res.Error != "" {
		fmt.Printf("failure:  %s (%s)\n", res.FailureKind, res.Error)
	}

	if res.Status == domain.MonitorStatusDown {
		os.Exit(2)
	}
}
