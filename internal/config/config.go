// Package config loads relschema settings from an optional YAML file,
// RELSCHEMA_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/filestore"
	"github.com/koustreak/relschema/internal/idgen"
	"github.com/koustreak/relschema/internal/logger"
)

// EnvPrefix prefixes every environment override: database.dsn is read from
// RELSCHEMA_DATABASE_DSN.
const EnvPrefix = "RELSCHEMA"

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	IDs       IDsConfig       `mapstructure:"ids"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Filestore FilestoreConfig `mapstructure:"filestore"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	// BatchSize caps the keys per IN list when loading relations.
	BatchSize int `mapstructure:"batch_size"`
	// Pool selects the Postgres client: pgxpool, or stdlib for database/sql.
	Pool string `mapstructure:"pool"`
}

const (
	PoolPgx    = "pgxpool"
	PoolStdlib = "stdlib"
)

type SchemaConfig struct {
	// Source is a local file path or a minio://bucket/key URL.
	Source string `mapstructure:"source"`
}

type IDsConfig struct {
	Strategy string `mapstructure:"strategy"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type FilestoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// New returns a viper instance with every key defaulted and environment
// overrides enabled. Callers bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	db := database.DefaultConfig("")
	v.SetDefault("database.driver", string(db.Driver))
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", db.MaxConns)
	v.SetDefault("database.min_conns", db.MinConns)
	v.SetDefault("database.max_conn_lifetime", db.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", db.MaxConnIdleTime)
	v.SetDefault("database.connect_timeout", db.ConnectTimeout)
	v.SetDefault("database.query_timeout", db.QueryTimeout)
	v.SetDefault("database.batch_size", 500)
	v.SetDefault("database.pool", PoolPgx)

	v.SetDefault("schema.source", "schema.yaml")
	v.SetDefault("ids.strategy", string(idgen.StrategyUUIDv7))

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.time_format", lc.TimeFormat)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("filestore.endpoint", "")
	v.SetDefault("filestore.access_key", "")
	v.SetDefault("filestore.secret_key", "")
	v.SetDefault("filestore.use_ssl", false)
	v.SetDefault("filestore.region", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "read config "+path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode config", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the settings every command relies on. The DSN is checked
// only when a database is opened.
func (c *Config) Validate() error {
	var acc error

	switch database.Driver(c.Database.Driver) {
	case database.DriverPostgres, database.DriverMySQL:
	default:
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidInput, "unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.BatchSize <= 0 {
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidInput, "database.batch_size must be positive, got %d", c.Database.BatchSize))
	}
	switch c.Database.Pool {
	case PoolPgx, PoolStdlib:
	default:
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidInput, "unsupported database pool %q", c.Database.Pool))
	}
	if _, err := idgen.New(idgen.Strategy(c.IDs.Strategy)); err != nil {
		acc = errs.Append(acc, errs.Wrap(errs.ErrKindInvalidInput, "ids.strategy", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		acc = errs.Append(acc, errs.Errorf(errs.ErrKindInvalidInput, "unsupported log format %q", c.Log.Format))
	}

	if c.Schema.Source == "" {
		acc = errs.Append(acc, errs.New(errs.ErrKindInvalidInput, "schema.source is empty"))
	} else if filestore.IsURL(c.Schema.Source) {
		if _, err := filestore.ParseURL(c.Schema.Source); err != nil {
			acc = errs.Append(acc, err)
		}
		if c.Filestore.Endpoint == "" {
			acc = errs.Append(acc, errs.New(errs.ErrKindInvalidInput, "filestore.endpoint is required for a minio schema source"))
		}
	}
	return acc
}

// DatabaseConfig converts the database section for the drivers.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          database.Driver(c.Database.Driver),
		DSN:             c.Database.DSN,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.MaxConnLifetime,
		MaxConnIdleTime: c.Database.MaxConnIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
		QueryTimeout:    c.Database.QueryTimeout,
	}
}

func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	lc.TimeFormat = c.Log.TimeFormat
	return lc
}

func (c *Config) FilestoreConfig() *filestore.Config {
	fc := filestore.DefaultConfig(c.Filestore.Endpoint, c.Filestore.AccessKey, c.Filestore.SecretKey)
	fc.UseSSL = c.Filestore.UseSSL
	fc.Region = c.Filestore.Region
	return fc
}

// IDGenerator returns the generator for the configured strategy.
func (c *Config) IDGenerator() (idgen.Generator, error) {
	g, err := idgen.New(idgen.Strategy(c.IDs.Strategy))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "ids.strategy", err)
	}
	return g, nil
}
