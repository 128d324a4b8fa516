package sqlengine

import (
	"context"
	"database/sql"
	"fmt"

	// database/sql drivers for registered databases
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open is the default Opener: sql.Open followed by a ping.
func Open(ctx context.Context, driverName, conn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, conn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return db, nil
}
