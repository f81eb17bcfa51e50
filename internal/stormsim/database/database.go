// Package database opens connection pools to the postgres warehouse.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
)

// OpenPgxPool connects a pgx pool using the configured connection values and
// verifies the connection with a ping.
func OpenPgxPool(config configuration.PostgresConfig) (*pgxpool.Pool, error) {
	connString := createConnectionString(config.Connection)
	if config.MaxOpenConns > 0 {
		connString = fmt.Sprintf("%s pool_max_conns=%d", connString, config.MaxOpenConns)
	}
	db, err := pgxpool.Connect(context.Background(), connString)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	if err := db.Ping(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging postgres")
	}
	return db, nil
}

func createConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
	result := ""
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	for k, v := range values {
		result += k + "='" + replacer.Replace(v) + "' "
	}
	return strings.TrimSpace(result)
}
