package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theinterneti/augment-adam-sub002/pkg/orchestra"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
)

func newPlanCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan [request]",
		Short: "Show the subtasks and agent assignments without executing",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := readRequest(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := newApp(global, appOptions{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out, err := a.orch.Plan(cmd.Context(), request)
			if err != nil {
				return fmt.Errorf("plan request: %w", err)
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out) //nolint:wrapcheck // write errors go straight to the user
			}
			writePlan(w, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the plan as JSON")
	return cmd
}

// writePlan prints one row per subtask in execution order.
func writePlan(w io.Writer, out *orchestra.Outcome) {
	fmt.Fprintf(w, "Request %s: %d subtasks (memory %.2f, cpu %.2f)\n\n",
		out.RequestID, len(out.Subtasks), out.Snapshot.Memory, out.Snapshot.CPU)

	idx := plan.ByID(out.Subtasks)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXPERTISE\tCOMPLEXITY\tMODEL\tREASONING\tDEPENDS ON\tDESCRIPTION")
	for _, id := range out.ExecutionOrder {
		st := idx[id]
		a := out.Assignments[id]
		size := string(a.ModelSize)
		if a.Degraded {
			size += " (from " + string(a.Requested) + ")"
		}
		deps := strings.Join(st.Dependencies, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id, st.Expertise, st.Complexity, size, a.Reasoning, deps, firstLine(st.Description))
	}
	_ = tw.Flush()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 72
	if len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}
