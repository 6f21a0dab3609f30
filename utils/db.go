package utils

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2" // load duckdb driver
)

const (
	maxConnAge  = 5 * time.Minute
	maxIdleConn = 5
)

var (
	poolMap   sync.Map
	dbHeld    int32
	poolSize  int32
	statsOnce sync.Once
)

type dbWrapper struct {
	*sql.DB
	initedAt time.Time
}

func startPoolStats() {
	t := time.NewTicker(time.Second * 30)
	go func() {
		for range t.C {
			active := atomic.LoadInt32(&dbHeld)
			idle := atomic.LoadInt32(&poolSize)
			if active >= idle-2 {
				Logger().Debug("duckdb pool stats", "active", active, "idle", idle)
			}
		}
	}()
}

// ConnectDuckDB returns a pooled DuckDB connection for dsn ("" is an in
// memory database) and the function that hands it back to the pool.
func ConnectDuckDB(dsn string) (*sql.DB, func(), error) {
	statsOnce.Do(startPoolStats)
	pool, _ := poolMap.LoadOrStore(dsn, &sync.Pool{})
	p := pool.(*sync.Pool)
	release := func(db *dbWrapper) func() {
		return func() {
			atomic.AddInt32(&dbHeld, -1)
			if time.Since(db.initedAt) > maxConnAge || atomic.LoadInt32(&poolSize) > maxIdleConn {
				db.Close()
				return
			}
			atomic.AddInt32(&poolSize, 1)
			p.Put(db)
		}
	}
	if db, ok := p.Get().(*dbWrapper); ok && db != nil {
		atomic.AddInt32(&poolSize, -1)
		atomic.AddInt32(&dbHeld, 1)
		return db.DB, release(db), nil
	}
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to connect to DuckDB: %w", err)
	}
	db := &dbWrapper{conn, time.Now()}
	atomic.AddInt32(&dbHeld, 1)
	return db.DB, release(db), nil
}
