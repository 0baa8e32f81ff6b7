package ledger

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"metaledger/internal/config"
)

// dialect isolates the small differences between the supported databases.
type dialect struct {
	name       string
	driverName string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	sqliteDialect   = dialect{name: config.DriverSQLite, driverName: "sqlite"}
	postgresDialect = dialect{name: config.DriverPostgres, driverName: "pgx", numbered: true}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverSQLite, "":
		return sqliteDialect, nil
	case config.DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported ledger driver %q", driver)
	}
}

// rebind rewrites ? placeholders for dialects that number their parameters.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dsn prepares the connection string. SQLite paths get WAL, foreign keys, and
// a busy timeout applied per connection.
func (d dialect) dsn(raw string) string {
	if d.name != config.DriverSQLite {
		return raw
	}
	if strings.HasPrefix(raw, "file:") || strings.Contains(raw, "?") || raw == ":memory:" {
		return raw
	}
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	return "file:" + raw + "?" + params.Encode()
}
