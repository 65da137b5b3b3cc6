package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/ddl"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/schema"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "compare the live store against the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reg, err := a.loadRegistry(ctx)
			if err != nil {
				return err
			}
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			return runCheck(cmd, db, reg)
		},
	}
}

func runCheck(cmd *cobra.Command, db database.DB, reg *schema.Registry) error {
	report, err := ddl.Check(cmd.Context(), db, reg, db.Dialect())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	if !report.OK() {
		return errs.Errorf(errs.ErrKindConstraint, "store has drifted: %d difference(s)", len(report.Drifts))
	}
	return nil
}
