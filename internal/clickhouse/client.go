package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/SteelMorgan/serilog-dashboard/internal/retry"
	"github.com/rs/zerolog/log"
)

// Options describes how to reach ClickHouse
type Options struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Protocol string // "native" (default) or "http"
}

// Client owns the ClickHouse connection used by the log store
type Client struct {
	conn clickhouse.Conn
}

// NewClient opens a connection and pings it with retry until the server answers
func NewClient(ctx context.Context, opts Options, retryCfg retry.Config) (*Client, error) {
	protocol, err := parseProtocol(opts.Protocol)
	if err != nil {
		return nil, err
	}

	chOpts := &clickhouse.Options{
		Protocol: protocol,
		Addr:     []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
	}
	if protocol == clickhouse.Native {
		chOpts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := retry.Do(ctx, retryCfg, func() error {
		return conn.Ping(ctx)
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info().
		Str("host", opts.Host).
		Int("port", opts.Port).
		Str("database", opts.Database).
		Bool("http", protocol == clickhouse.HTTP).
		Msg("Connected to ClickHouse")

	return &Client{conn: conn}, nil
}

// Query runs a SELECT
func (c *Client) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.conn.Query(ctx, query, args...)
}

// QueryRow runs a SELECT returning a single row
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return c.conn.QueryRow(ctx, query, args...)
}

// Exec runs a statement without results
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

// PrepareBatch starts a batched INSERT
func (c *Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.conn.PrepareBatch(ctx, query)
}

// Close closes the connection
func (c *Client) Close() error {
	log.Info().Msg("Closing ClickHouse connection")
	return c.conn.Close()
}

func parseProtocol(s string) (clickhouse.Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native", "tcp":
		return clickhouse.Native, nil
	case "http":
		return clickhouse.HTTP, nil
	default:
		return clickhouse.Native, fmt.Errorf("unsupported clickhouse protocol: %s (use 'native' or 'http')", s)
	}
}
