package commands

import (
	"fmt"

	"github.com/amp-labs/amp-fsm/statemachine/validator"
	"github.com/spf13/cobra"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the order machine for structural problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := newOrderBuilder(a.order(), cmd.OutOrStdout()).
				WithOptions(a.cfg.EngineOptions()...).
				Build()
			if err != nil {
				return err
			}

			result := validator.Validate(validator.FromEngine(engine, orderStates...))

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.String())

			return result.Err()
		},
	}
}
