// Command relayctl drives a running gateway from the terminal: it probes the
// task endpoints and prints relayed streams as they arrive.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	server     string
	generate   string
	explain    string
	correct    string
	timeout    time.Duration
	skipProbe  bool
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "relayctl",
		Short:         "Probe and drive a codestream gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.server, "server", envOr("RELAYCTL_SERVER", "http://127.0.0.1:8080"), "gateway base URL")
	f.StringVar(&opts.generate, "generate-url", "", "generate service base URL (default: --server)")
	f.StringVar(&opts.explain, "explain-url", "", "explain service base URL (default: --server)")
	f.StringVar(&opts.correct, "correct-url", "", "correct service base URL (default: --server)")
	f.DurationVar(&opts.timeout, "probe-timeout", 3*time.Second, "health probe timeout")
	f.BoolVar(&opts.skipProbe, "no-probe", false, "relay without probing the service first")
	f.BoolVar(&opts.jsonOutput, "json", false, "print events as JSON lines instead of text")

	cmd.AddCommand(
		newProbeCmd(opts),
		newGenerateCmd(opts),
		newExplainCmd(opts),
		newCorrectCmd(opts),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
