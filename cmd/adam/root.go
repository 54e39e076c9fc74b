package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/theinterneti/augment-adam-sub002/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	// memory and cpu pin the reported headroom when >= 0.
	memory float64
	cpu    float64
}

func (o *globalOptions) staticResources() bool {
	return o.memory >= 0 || o.cpu >= 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "adam",
		Short: "Resource-aware multi-agent request pipeline",
		Long: `adam splits a request into subtasks for specialized agents, picks a
model size and reasoning mode for each one based on free memory and CPU,
runs them in dependency order and merges the results into one answer.

Example:
  adam run "Set up tests and CI for my Go project"
  echo "Profile the hot path" | adam run --parallel
  adam plan "Harden the auth service"
  adam resources`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./adam.yaml or $XDG_CONFIG_HOME/adam/config.yaml)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.Float64Var(&opts.memory, "memory", -1, "pin memory headroom to this fraction (clamped to [0,1]); CPU is still sampled unless --cpu is set")
	flags.Float64Var(&opts.cpu, "cpu", -1, "pin CPU headroom to this fraction (clamped to [0,1]); memory is still sampled unless --memory is set")

	root.AddCommand(
		newRunCmd(opts),
		newPlanCmd(opts),
		newResourcesCmd(opts),
		newReportCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// stdinIsTerminal is replaced in tests.
//
//nolint:gochecknoglobals // test seam
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readRequest joins args into the request, reading it from in when there are
// no args and stdin is not a terminal.
func readRequest(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if stdinIsTerminal() {
		return "", fmt.Errorf("no request given: pass it as arguments or pipe it on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read request from stdin: %w", err)
	}
	request := strings.TrimSpace(string(data))
	if request == "" {
		return "", fmt.Errorf("no request given: stdin was empty")
	}
	return request, nil
}
