// File: cmd/journeys.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/campaign-probe/internal/journey"
)

func newJourneysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journeys",
		Short: "Lists the journeys a test case can name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJourneys(cmd.OutOrStdout())
		},
	}
}

func listJourneys(out io.Writer) error {
	for _, name := range journey.Names() {
		j, err := journey.Lookup(name)
		if err != nil {
			return err
		}
		requires := make([]string, len(j.Requires))
		for i, k := range j.Requires {
			requires[i] = string(k)
		}
		req := "-"
		if len(requires) > 0 {
			req = strings.Join(requires, ",")
		}
		fmt.Fprintf(out, "%-32s steps=%-3d attempts=%d requires=%s\n", j.Name, len(j.Steps), j.MaxAttempts, req)
	}
	return nil
}
