// Package migrations ships the schema for both stores inside the binary:
// Postgres (tokens, market snapshots, trades) and ClickHouse (the price
// timeseries). Files apply in lexical order at startup.
package migrations

import "embed"

// PostgresFS holds the Postgres schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
