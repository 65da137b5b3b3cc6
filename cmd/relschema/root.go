package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/koustreak/relschema/internal/config"
	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/database/mysql"
	"github.com/koustreak/relschema/internal/database/postgres"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/filestore"
	"github.com/koustreak/relschema/internal/filestore/minio"
	"github.com/koustreak/relschema/internal/logger"
	"github.com/koustreak/relschema/internal/schema"
)

// app is the state every subcommand starts from.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *logger.Logger
}

// flagKeys binds persistent flags onto config keys.
var flagKeys = map[string]string{
	"schema":     "schema.source",
	"driver":     "database.driver",
	"dsn":        "database.dsn",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:          "relschema",
		Short:        "typed relational schema registry and resolver",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			for flag, key := range flagKeys {
				if err := a.v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
					return err
				}
			}
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(a.v, path)
			if err != nil {
				return err
			}
			lc := cfg.LoggerConfig()
			lc.Output = cmd.ErrOrStderr()
			a.cfg = cfg
			a.log = logger.New(lc)
			logger.SetGlobal(a.log)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a YAML config file")
	pf.String("schema", "", "schema document path or minio://bucket/key URL")
	pf.String("driver", "", "database driver: postgres or mysql")
	pf.String("dsn", "", "database connection string")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or console")

	root.AddCommand(
		newValidateCmd(a),
		newDDLCmd(a),
		newMigrateCmd(a),
		newCheckCmd(a),
		newServeCmd(a),
	)
	return root
}

// loadRegistry compiles the configured schema source.
func (a *app) loadRegistry(ctx context.Context) (*schema.Registry, error) {
	source := a.cfg.Schema.Source
	if !filestore.IsURL(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindNotFound, "open schema "+source, err)
		}
		defer f.Close()
		return schema.LoadDocument(f)
	}

	loc, err := filestore.ParseURL(source)
	if err != nil {
		return nil, err
	}
	store, err := minio.New(ctx, a.cfg.FilestoreConfig())
	if err != nil {
		return nil, err
	}
	defer store.Close()
	a.log.DebugWith("loading schema from object storage", map[string]any{"location": loc.String()})
	return filestore.LoadRegistry(ctx, store, loc)
}

// openDB connects with the configured driver.
func (a *app) openDB(ctx context.Context) (database.DB, error) {
	dc := a.cfg.DatabaseConfig()
	if err := dc.Validate(); err != nil {
		return nil, err
	}
	switch {
	case dc.Driver == database.DriverMySQL:
		return mysql.New(ctx, dc)
	case a.cfg.Database.Pool == config.PoolStdlib:
		return postgres.OpenSQL(ctx, dc)
	default:
		return postgres.New(ctx, dc)
	}
}

// dialect is the configured dialect, for commands that never connect.
func (a *app) dialect() database.Dialect {
	return database.Driver(a.cfg.Database.Driver).Dialect()
}
