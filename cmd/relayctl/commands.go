package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codestream-gateway/internal/health"
	"codestream-gateway/pkg/logging/logging"
)

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the generate, explain and correct services answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newMonitor(opts)
			results := m.ProbeAll(cmd.Context())

			out := cmd.OutOrStdout()
			offline := 0
			for _, name := range m.Targets() {
				res := results[name]
				line := fmt.Sprintf("%-9s %-8s %v", name, res.Status, res.Latency.Round(1e6))
				if res.Err != nil {
					line += "  " + res.Err.Error()
					offline++
				}
				fmt.Fprintln(out, line)
			}
			if offline > 0 {
				return fmt.Errorf("%d of %d services offline", offline, len(results))
			}
			return nil
		},
	}
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		index    int
		language string
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Stream a reference solution for a problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureOnline(cmd.Context(), opts, "generate"); err != nil {
				return err
			}
			q := url.Values{}
			q.Set("index", strconv.Itoa(index))
			q.Set("language", language)
			if refresh {
				q.Set("refresh", "true")
			}
			c := newStreamClient(opts.baseURL("generate"))
			return c.get(cmd.Context(), "/v1/generate-stream", q, newPrinter(cmd.OutOrStdout(), opts.jsonOutput))
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "problem index")
	cmd.Flags().StringVar(&language, "language", "python", "target language")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var (
		file     string
		language string
		index    int
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Stream an explanation of a source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if err := ensureOnline(cmd.Context(), opts, "explain"); err != nil {
				return err
			}
			body := map[string]any{
				"code":     string(code),
				"language": language,
				"executed": true,
				"refresh":  refresh,
			}
			if cmd.Flags().Changed("index") {
				body["index"] = index
			}
			c := newStreamClient(opts.baseURL("explain"))
			return c.post(cmd.Context(), "/v1/explain-stream", body, newPrinter(cmd.OutOrStdout(), opts.jsonOutput))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "source file to explain")
	cmd.Flags().StringVar(&language, "language", "python", "source language")
	cmd.Flags().IntVar(&index, "index", 0, "problem index for context")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCorrectCmd(opts *rootOptions) *cobra.Command {
	var (
		file     string
		language string
		index    int
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Stream a corrected version of a source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if err := ensureOnline(cmd.Context(), opts, "correct"); err != nil {
				return err
			}
			body := map[string]any{
				"code":     string(code),
				"language": language,
				"refresh":  refresh,
			}
			if cmd.Flags().Changed("index") {
				body["index"] = index
			}
			c := newStreamClient(opts.baseURL("correct"))
			return c.post(cmd.Context(), "/v1/correct-stream", body, newPrinter(cmd.OutOrStdout(), opts.jsonOutput))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "source file to correct")
	cmd.Flags().StringVar(&language, "language", "python", "source language")
	cmd.Flags().IntVar(&index, "index", 0, "problem index for context")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (o *rootOptions) baseURL(task string) string {
	var u string
	switch task {
	case "generate":
		u = o.generate
	case "explain":
		u = o.explain
	case "correct":
		u = o.correct
	}
	if u == "" {
		u = o.server
	}
	return u
}

func newMonitor(opts *rootOptions) *health.Monitor {
	m := health.NewMonitor(logging.DefaultLogger().WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	for _, task := range []string{"generate", "explain", "correct"} {
		m.Register(task, health.HTTPChecker(nil, opts.baseURL(task)+"/health", opts.timeout))
	}
	return m
}

// ensureOnline probes the service behind task once before relaying to it.
func ensureOnline(ctx context.Context, opts *rootOptions, task string) error {
	if opts.skipProbe {
		return nil
	}
	res := health.Probe(ctx, nil, opts.baseURL(task)+"/health", opts.timeout)
	if res.Status != health.Online {
		return fmt.Errorf("%s service is offline: %v", task, res.Err)
	}
	return nil
}
