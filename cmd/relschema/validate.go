package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/relschema/internal/errs"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "compile the schema and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.loadRegistry(cmd.Context())
			if err != nil {
				for _, e := range errs.All(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
				}
				return errs.Errorf(errs.KindOf(err), "schema has %d problem(s)", len(errs.All(err)))
			}

			out := cmd.OutOrStdout()
			for _, e := range reg.Entities() {
				fmt.Fprintf(out, "%-40s %-6s %d field(s), %d relation(s)\n",
					e.QualifiedName(), e.Kind(), len(e.Fields()), len(reg.RelationsOf(e.Name())))
			}
			fmt.Fprintf(out, "ok: %d entities in %d namespace(s)\n", len(reg.Entities()), len(reg.Namespaces()))
			return nil
		},
	}
}
