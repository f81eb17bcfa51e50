package sample

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
)

const defaultPropertyTable = "property_samples"

var dialect = goqu.Dialect("postgres")

// PostgresProvider draws random properties from a warehouse table. The table
// is expected to carry one row per insurable property with state, county,
// zip_code, limit_amount, lon and lat columns.
type PostgresProvider struct {
	db    *pgxpool.Pool
	table string
}

func NewPostgresProvider(db *pgxpool.Pool, table string) *PostgresProvider {
	if table == "" {
		table = defaultPropertyTable
	}
	return &PostgresProvider{db: db, table: table}
}

func (p *PostgresProvider) Sample(ctx context.Context, state string, n int) ([]PropertySample, error) {
	sql, args, err := dialect.
		From(p.table).
		Select("state", "county", "zip_code", "limit_amount", "lon", "lat").
		Where(goqu.C("state").Eq(state)).
		Order(goqu.L("RANDOM()").Asc()).
		Limit(uint(n)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "building sample query")
	}

	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sampling %d properties for state %s", n, state)
	}
	defer rows.Close()

	var samples []PropertySample
	for rows.Next() {
		var s PropertySample
		if err := rows.Scan(&s.State, &s.County, &s.Zip, &s.Limit, &s.Location.Lon, &s.Location.Lat); err != nil {
			return nil, errors.Wrap(err, "scanning property sample")
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
