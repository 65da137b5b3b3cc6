package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/relschema/internal/ddl"
)

func newDDLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "print the DDL script for the configured driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.loadRegistry(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := ddl.Generate(reg, a.dialect())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), plan.String())
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply the DDL plan; objects that already exist are skipped",
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

			plan, err := ddl.Generate(reg, db.Dialect())
			if err != nil {
				return err
			}
			res, err := ddl.Apply(ctx, db, plan, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d, skipped %d\n", res.Applied, res.Skipped)

			if verify, _ := cmd.Flags().GetBool("verify"); verify {
				return runCheck(cmd, db, reg)
			}
			return nil
		},
	}
	cmd.Flags().Bool("verify", false, "run a drift check after applying")
	return cmd
}
