package driver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	mssql "github.com/microsoft/go-mssqldb"

	"dbautorest/models"
	"dbautorest/services/dialect"
)

// PostgresConnConfig builds a pgx connection config. It is also used by the
// LISTEN/NOTIFY listener, which needs a dedicated connection.
func PostgresConnConfig(cfg models.ConnectionConfig) (*pgx.ConnConfig, error) {
	sslmode := "disable"
	if cfg.TLS {
		sslmode = "require"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg.Port, 5432))),
		Path:   "/" + cfg.Database,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return pgx.ParseConfig(u.String())
}

func openPostgres(ctx context.Context, cfg models.ConnectionConfig, opts PoolOptions) (Executor, error) {
	connCfg, err := PostgresConnConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	if opts.DialTimeout > 0 {
		connCfg.ConnectTimeout = opts.DialTimeout
	}
	return openSQL(ctx, stdlib.OpenDB(*connCfg), dialect.Postgres, opts)
}

func openMySQL(ctx context.Context, cfg models.ConnectionConfig, opts PoolOptions) (Executor, error) {
	return openMySQLConfig(ctx, mysqlConfig(cfg, opts), opts)
}

// mysqlConfig keeps placeholders server side; arguments are never
// interpolated into the statement text.
func mysqlConfig(cfg models.ConnectionConfig, opts PoolOptions) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg.Port, 3306)))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if cfg.TLS {
		mc.TLSConfig = "true"
	}
	if opts.DialTimeout > 0 {
		mc.Timeout = opts.DialTimeout
	}
	if len(cfg.Options) > 0 {
		mc.Params = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}
	return mc
}

func openMySQLConfig(ctx context.Context, mc *mysql.Config, opts PoolOptions) (Executor, error) {
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql config: %w", err)
	}
	return openSQL(ctx, sql.OpenDB(connector), dialect.MySQL, opts)
}

func openMSSQL(ctx context.Context, cfg models.ConnectionConfig, opts PoolOptions) (Executor, error) {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg.Port, 1433))),
	}
	q := u.Query()
	q.Set("database", cfg.Database)
	if cfg.TLS {
		q.Set("encrypt", "true")
	} else {
		q.Set("encrypt", "disable")
	}
	if opts.DialTimeout > 0 {
		q.Set("dial timeout", strconv.Itoa(int(opts.DialTimeout/time.Second)))
	}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	connector, err := mssql.NewConnector(u.String())
	if err != nil {
		return nil, fmt.Errorf("invalid mssql config: %w", err)
	}
	return openSQL(ctx, sql.OpenDB(connector), dialect.MSSQL, opts)
}

func defaultPort(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
