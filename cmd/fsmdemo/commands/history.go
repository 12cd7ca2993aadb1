package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/amp-labs/amp-fsm/statemachine/persistence"
	"github.com/spf13/cobra"
)

func newHistoryCommand(_ *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the transition log stored in a snapshot file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := persistence.ReadFile(path, persistence.OptionsForPath(path))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintf(out, "machine:     %s\n", snapshot.Machine)
			_, _ = fmt.Fprintf(out, "state:       %s\n", snapshot.State)
			_, _ = fmt.Fprintf(out, "saved at:    %s\n", snapshot.SavedAt.Format("2006-01-02 15:04:05"))
			_, _ = fmt.Fprintf(out, "fingerprint: %s\n", snapshot.Fingerprint)

			if len(snapshot.History) == 0 {
				_, _ = fmt.Fprintln(out, "no history recorded")

				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			_, _ = fmt.Fprintln(tw, "#\tWHEN\tFROM\tSTIMULUS\tTO")

			for i, record := range snapshot.History {
				reason := "(forced)"
				if record.Reason != nil {
					reason = *record.Reason
				}

				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					i, record.When.Format("15:04:05.000"), record.From, reason, record.To)
			}

			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "snapshot file to read")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
