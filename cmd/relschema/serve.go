package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/koustreak/relschema/internal/ddl"
	"github.com/koustreak/relschema/internal/metrics"
	"github.com/koustreak/relschema/internal/resolver"
	"github.com/koustreak/relschema/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the schema and its records over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}

			reg, err := a.loadRegistry(ctx)
			if err != nil {
				return err
			}
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
				plan, err := ddl.Generate(reg, db.Dialect())
				if err != nil {
					return err
				}
				if _, err := ddl.Apply(ctx, db, plan, a.log); err != nil {
					return err
				}
			}

			ids, err := a.cfg.IDGenerator()
			if err != nil {
				return err
			}

			promReg := prometheus.NewRegistry()
			promReg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(promReg)

			r := resolver.New(reg, db,
				resolver.WithIDGenerator(ids),
				resolver.WithLogger(a.log),
				resolver.WithObserver(m),
				resolver.WithQueryTimeout(a.cfg.Database.QueryTimeout),
				resolver.WithBatchSize(a.cfg.Database.BatchSize),
			)

			srv := server.New(r,
				server.WithConfig(server.Config{
					Addr:            a.cfg.Server.Addr,
					ReadTimeout:     a.cfg.Server.ReadTimeout,
					WriteTimeout:    a.cfg.Server.WriteTimeout,
					ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
				}),
				server.WithLogger(a.log),
				server.WithMetrics(m, promReg),
				server.WithPinger(db),
			)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides server.addr")
	cmd.Flags().Bool("migrate", false, "apply the DDL plan before serving")
	return cmd
}
