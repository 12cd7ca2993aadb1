package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine/persistence"
	"github.com/amp-labs/amp-fsm/statemachine/visualizer"
	"github.com/spf13/cobra"
)

var errUnknownGraphFormat = errors.New("unknown graph format")

type graphFlags struct {
	format      string
	direction   string
	noGuards    bool
	noActions   bool
	restorePath string
}

func newGraphCommand(a *app) *cobra.Command {
	var flags graphFlags

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the order machine as a Mermaid or Graphviz diagram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			engine, err := newOrderBuilder(a.order(), cmd.ErrOrStderr()).
				WithOptions(a.cfg.EngineOptions()...).
				Build()
			if err != nil {
				return err
			}

			opts := visualizer.DefaultOptions().
				WithDirection(flags.direction).
				WithShowGuards(!flags.noGuards).
				WithShowActions(!flags.noActions)

			// Highlight where a saved machine stands and the path it took there.
			if flags.restorePath != "" {
				snapshot, err := persistence.RestoreFile(ctx, flags.restorePath, engine, converter(),
					persistence.OptionsForPath(flags.restorePath))
				if err != nil {
					return err
				}

				path := make([]string, 0, len(snapshot.History)+1)
				for _, record := range snapshot.History {
					path = append(path, record.From)
				}

				opts = opts.WithHighlightPath(append(path, snapshot.State))
			}

			var diagram string

			switch strings.ToLower(flags.format) {
			case "mermaid":
				diagram, err = visualizer.GenerateMermaid(engine, opts)
			case "dot":
				diagram, err = visualizer.GenerateDOT(engine, opts)
			default:
				return fmt.Errorf("%w: %q (want mermaid or dot)", errUnknownGraphFormat, flags.format)
			}

			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), diagram)

			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "mermaid", "diagram format: mermaid or dot")
	cmd.Flags().StringVar(&flags.direction, "direction", "TB", "layout direction: TB, BT, LR or RL")
	cmd.Flags().BoolVar(&flags.noGuards, "no-guards", false, "hide guard markers")
	cmd.Flags().BoolVar(&flags.noActions, "no-actions", false, "hide action identifiers")
	cmd.Flags().StringVar(&flags.restorePath, "restore", "", "highlight the state and path stored in a snapshot")

	return cmd
}
