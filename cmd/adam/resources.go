package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

func newResourcesCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Print current resource headroom and which tiers it admits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(global, appOptions{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			snap := a.monitor.Available(cmd.Context())
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "memory headroom: %.2f\n", snap.Memory)
			fmt.Fprintf(w, "cpu headroom:    %.2f\n", snap.CPU)
			fmt.Fprintf(w, "active agents:   %d\n", snap.ActiveAgents)
			if snap.Fallback {
				fmt.Fprintln(w, "(sampling failed, showing configured fallback)")
			}
			if a.configPath != "" {
				fmt.Fprintf(w, "config:          %s\n", a.configPath)
			}
			fmt.Fprintln(w)

			costs := a.cfg.CostTable()
			sizes := make([]selector.ModelSize, 0, len(costs.Tiers))
			for size := range costs.Tiers {
				sizes = append(sizes, size)
			}
			sort.Slice(sizes, func(i, j int) bool { return sizes[i].Rank() < sizes[j].Rank() })

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tMODEL\tFITS\tFITS WITH REASONING\tSLOTS")
			for _, size := range sizes {
				maxAgents, _ := a.limiter.Status(string(size))
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					size,
					a.factory.ModelName(size),
					yesNo(selector.Admit(costs.Estimate(size, selector.ReasoningDisabled), snap)),
					yesNo(selector.Admit(costs.Estimate(size, selector.ReasoningEnabled), snap)),
					maxAgents,
				)
			}
			return tw.Flush() //nolint:wrapcheck // write errors go straight to the user
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
