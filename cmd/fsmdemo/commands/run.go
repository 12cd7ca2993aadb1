package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"facette.io/natsort"
	"github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/persistence"
	"github.com/spf13/cobra"
)

type runFlags struct {
	stimuli     []string
	savePath    string
	restorePath string
}

func newRunCommand(a *app) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Post stimuli to the order machine",
		Long: `Run posts stimuli to the order machine through a deferred engine.

Without --stimuli the next stimulus is chosen interactively from the ones the
current state accepts. Snapshot files may end in .json or .yaml, optionally
followed by .zst, .lz4 or .br for compression.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.stimuli, "stimuli", nil, "comma separated stimuli to post instead of prompting")
	cmd.Flags().StringVar(&flags.savePath, "save", "", "write a snapshot here when done")
	cmd.Flags().StringVar(&flags.restorePath, "restore", "", "restore a snapshot before posting")

	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, flags runFlags) (err error) {
	conv := converter()

	// Parse everything up front so a typo does not leave a half-applied script.
	stimuli := make([]orderEvent, 0, len(flags.stimuli))

	for _, label := range flags.stimuli {
		stimulus, err := conv.ParseStimulus(label)
		if err != nil {
			return err
		}

		stimuli = append(stimuli, stimulus)
	}

	var failures []error

	machine, err := newOrderBuilder(a.order(), out).
		WithOptions(a.cfg.EngineOptions()...).
		BuildDeferred(ctx, append(a.cfg.DeferredOptions(),
			statemachine.WithErrorHandler(func(_ context.Context, err error) {
				failures = append(failures, err)
			}))...)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, machine.Close())
	}()

	if flags.restorePath != "" {
		snapshot, err := persistence.RestoreFile(ctx, flags.restorePath, machine, conv,
			persistence.OptionsForPath(flags.restorePath))
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "restored %s from %s (saved %s)\n",
			snapshot.State, flags.restorePath, snapshot.SavedAt.Format("2006-01-02 15:04:05"))
	}

	_, _ = fmt.Fprint(out, cli.Banner(fmt.Sprintf("%s machine\nstate: %s", machineName, machine.CurrentState()), 0))

	if len(flags.stimuli) > 0 {
		err = a.script(ctx, out, machine, stimuli)
	} else {
		err = a.interactive(ctx, out, machine)
	}

	if err != nil {
		return err
	}

	// The error handler runs on the consumer goroutine; AwaitIdle above
	// orders those writes before this read.
	for _, failure := range failures {
		_, _ = fmt.Fprintln(out, "  failed:", failure)
	}

	_, _ = fmt.Fprint(out, cli.Divider(cli.DefaultWidth))
	_, _ = fmt.Fprintf(out, "final state: %s\n", machine.CurrentState())

	if flags.savePath != "" {
		if err := persistence.SaveFile(ctx, flags.savePath, machine, conv,
			persistence.OptionsForPath(flags.savePath)); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "saved to %s\n", flags.savePath)
	}

	return nil
}

func (a *app) script(
	ctx context.Context, out io.Writer, machine *statemachine.Deferred[orderState, orderEvent], stimuli []orderEvent,
) error {
	for _, stimulus := range stimuli {
		before := machine.CurrentState()

		if err := machine.PostAndWait(ctx, stimulus); err != nil {
			return err
		}

		if machine.CurrentState() == before {
			_, _ = fmt.Fprintf(out, "  %s ignored in %s\n", stimulus, before)
		}
	}

	return nil
}

func (a *app) interactive(ctx context.Context, out io.Writer, machine *statemachine.Deferred[orderState, orderEvent]) error {
	for {
		choices := acceptedStimuli(machine.Table(), machine.CurrentState())
		if len(choices) == 0 {
			_, _ = fmt.Fprintf(out, "%s is final\n", machine.CurrentState())

			return nil
		}

		choice, err := a.prompter.Choose(fmt.Sprintf("%s is %s", machineName, machine.CurrentState()), choices)
		if errors.Is(err, cli.ErrQuit) {
			return nil
		}

		if err != nil {
			return err
		}

		logger.Get(ctx).DebugContext(ctx, "Stimulus chosen", "stimulus", choice)

		if err := machine.PostAndWait(ctx, orderEvent(choice)); err != nil {
			return err
		}
	}
}

// acceptedStimuli lists the stimuli state has transitions for, in natural order.
func acceptedStimuli(table statemachine.TableView[orderState, orderEvent], state orderState) []string {
	outgoing := table.Outgoing(state)

	labels := make([]string, 0, len(outgoing))
	for stimulus := range outgoing {
		labels = append(labels, string(stimulus))
	}

	natsort.Sort(labels)

	return labels
}
