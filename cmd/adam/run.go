package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/orchestra"
)

type runOptions struct {
	parallel      bool
	maxParallel   int
	showPlan      bool
	showLog       bool
	jsonOutput    bool
	metricsListen string
	contextFile   string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Decompose, execute and merge a request",
		Long: `Run the full pipeline for one request. The request is taken from the
arguments, or read from stdin when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := readRequest(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(global, appOptions{
				parallel:    opts.parallel,
				maxParallel: opts.maxParallel,
				withMetrics: opts.metricsListen != "",
				contextFile: opts.contextFile,
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if opts.metricsListen != "" {
				stop, err := serveMetrics(a, opts.metricsListen)
				if err != nil {
					return err
				}
				defer stop()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			start := time.Now()
			out, err := a.orch.Handle(ctx, request)
			if err != nil {
				return fmt.Errorf("handle request: %w", err)
			}
			return printOutcome(cmd, out, opts, start)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.parallel, "parallel", false, "run independent subtasks concurrently")
	flags.IntVar(&opts.maxParallel, "max-parallel", 0, "maximum concurrent subtasks (default from config)")
	flags.BoolVar(&opts.showPlan, "show-plan", false, "print subtasks and assignments before the answer")
	flags.BoolVar(&opts.showLog, "show-log", false, "print this run's log lines after the answer")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the full outcome as JSON")
	flags.StringVar(&opts.contextFile, "context-file", "", "give development, architecture, security and performance agents this file as context")
	flags.StringVar(&opts.metricsListen, "metrics-listen", "", "serve /metrics and /health on this address during the run")
	return cmd
}

func printOutcome(cmd *cobra.Command, out *orchestra.Outcome, opts *runOptions, start time.Time) error {
	w := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
		return nil
	}

	if opts.showPlan {
		writePlan(w, out)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, out.Answer)

	if opts.showLog {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "--- log (request %s) ---\n", out.RequestID)
		for _, entry := range logx.RecentEntries("", start.Truncate(time.Millisecond)) {
			fmt.Fprintf(w, "[%s] [%s] %s: %s", entry.Timestamp, entry.Component, entry.Level, entry.Message)
			if fields := logx.FormatData(entry.Data); fields != "" {
				fmt.Fprintf(w, " %s", fields)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// serveMetrics exposes the app's registry over HTTP until the returned func is called.
func serveMetrics(a *app, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.Handle("/health", healthHandler(a.factory.CircuitStates))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Log(logx.LevelError, "metrics server stopped", map[string]any{"error": err.Error()})
		}
	}()
	a.logger.Info("serving metrics on %s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
