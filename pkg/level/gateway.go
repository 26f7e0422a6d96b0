package level

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/liliang-cn/sqlevel/internal/query"

	_ "modernc.org/sqlite" // SQLite driver
)

// maxVariables bounds the keys bound into one IN (...) lookup.
const maxVariables = 500

// rawOp is a batch operation on an already namespaced key.
type rawOp struct {
	del   bool
	key   string
	value string
}

type statements struct {
	get *sql.Stmt
	put *sql.Stmt
	del *sql.Stmt
}

func (s *statements) close() error {
	return errors.Join(s.get.Close(), s.put.Close(), s.del.Close())
}

// gateway owns the single read-write connection to the backing file. All
// key arguments are raw table keys.
type gateway struct {
	lifecycle

	cfg   Config
	log   Logger
	table string // quoted

	db    *sql.DB
	stmts *statements
}

func newGateway(cfg Config, log Logger) *gateway {
	return &gateway{
		lifecycle: lifecycle{status: StatusOpening},
		cfg:       cfg,
		log:       log,
		table:     query.QuoteIdent(cfg.Table),
	}
}

// open connects, creates the schema and releases deferred operations.
// Concurrent calls share one attempt.
func (g *gateway) open(ctx context.Context) error {
	g.mu.Lock()
	for g.opening != nil || g.closing != nil {
		if ch := g.opening; ch != nil {
			g.mu.Unlock()
			if err := wait(ctx, ch); err != nil {
				return err
			}
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.status == StatusOpen {
				return nil
			}
			return g.openErr
		}
		ch := g.closing
		g.mu.Unlock()
		if err := wait(ctx, ch); err != nil {
			return err
		}
		g.mu.Lock()
	}
	if g.status == StatusOpen {
		g.mu.Unlock()
		return nil
	}
	g.status = StatusOpening
	g.opening = make(chan struct{})
	g.abort = false
	g.openErr = nil
	g.mu.Unlock()

	err := g.connect(ctx)
	flushed := 0
	if err == nil {
		flushed, err = g.flush()
	}
	if err != nil {
		if tdErr := g.teardown(); tdErr != nil {
			g.log.Warn("failed to release connection after open failure", "error", tdErr)
		}
	}

	g.mu.Lock()
	var rejected []*task
	if err != nil {
		g.status = StatusClosed
		g.openErr = err
		rejected = g.takeQueue()
	}
	ch := g.opening
	g.opening = nil
	g.mu.Unlock()
	close(ch)

	if err != nil {
		reject(rejected)
		g.log.Error("failed to open database", "path", g.cfg.Path, "rejected", len(rejected), "error", err)
		return err
	}
	g.log.Info("database opened", "path", g.cfg.Path, "deferred", flushed)
	return nil
}

func (g *gateway) connect(ctx context.Context) error {
	db, err := sql.Open(driverName, g.cfg.dsn(false))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writes serialize on it and reads through it see the
	// latest committed state.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := g.createSchema(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	stmts, err := g.prepare(ctx, db)
	if err != nil {
		_ = db.Close()
		return err
	}

	g.rw.Lock()
	g.db, g.stmts = db, stmts
	g.rw.Unlock()
	return nil
}

// createSchema creates the table and its unique key index, leaving an
// existing store untouched.
func (g *gateway) createSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key TEXT, val TEXT)`, g.table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (key)`, query.QuoteIdent(g.cfg.IndexName), g.table),
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	g.log.Debug("schema ready", "table", g.cfg.Table, "index", g.cfg.IndexName)
	return nil
}

func (g *gateway) prepare(ctx context.Context, db *sql.DB) (*statements, error) {
	var (
		s   statements
		err error
	)
	if s.get, err = db.PrepareContext(ctx, `SELECT val FROM `+g.table+` WHERE key = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get: %w", err)
	}
	if s.put, err = db.PrepareContext(ctx, `INSERT INTO `+g.table+` (key, val) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET val = excluded.val`); err != nil {
		_ = s.get.Close()
		return nil, fmt.Errorf("failed to prepare put: %w", err)
	}
	if s.del, err = db.PrepareContext(ctx, `DELETE FROM `+g.table+` WHERE key = ?`); err != nil {
		_ = s.get.Close()
		_ = s.put.Close()
		return nil, fmt.Errorf("failed to prepare delete: %w", err)
	}
	return &s, nil
}

// close runs release once every in-flight operation has finished, then
// closes the connection exactly once. Closing a store that is still opening
// aborts the open and rejects deferred operations.
func (g *gateway) close(release func()) error {
	g.mu.Lock()
	for {
		if ch := g.closing; ch != nil {
			g.mu.Unlock()
			<-ch
			return nil
		}
		ch := g.opening
		if ch == nil {
			break
		}
		g.abort = true
		g.mu.Unlock()
		<-ch
		g.mu.Lock()
	}

	switch g.status {
	case StatusClosed:
		g.mu.Unlock()
		return nil
	case StatusOpening:
		rejected := g.takeQueue()
		g.status = StatusClosed
		g.mu.Unlock()
		reject(rejected)
		g.log.Info("database closed before open", "rejected", len(rejected))
		return nil
	}
	g.status = StatusClosing
	g.closing = make(chan struct{})
	g.mu.Unlock()

	g.rw.Lock()
	release()
	err := g.teardownLocked()
	g.rw.Unlock()

	g.mu.Lock()
	g.status = StatusClosed
	ch := g.closing
	g.closing = nil
	g.mu.Unlock()
	close(ch)

	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	g.log.Info("database connection closed")
	return nil
}

func (g *gateway) teardown() error {
	g.rw.Lock()
	defer g.rw.Unlock()
	return g.teardownLocked()
}

func (g *gateway) teardownLocked() error {
	var errs []error
	if g.stmts != nil {
		errs = append(errs, g.stmts.close())
	}
	if g.db != nil {
		errs = append(errs, g.db.Close())
	}
	g.db, g.stmts = nil, nil
	return errors.Join(errs...)
}

func (g *gateway) get(ctx context.Context, key string) (string, error) {
	var val string
	err := g.stmts.get.QueryRowContext(ctx, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return val, nil
}

// getMany returns one slot per key, in input order, nil where absent.
func (g *gateway) getMany(ctx context.Context, keys []string) ([]*string, error) {
	found := make(map[string]string, len(keys))
	for start := 0; start < len(keys); start += maxVariables {
		chunk := keys[start:min(start+maxVariables, len(keys))]
		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		q := `SELECT key, val FROM ` + g.table + ` WHERE key IN (` + query.Placeholders(len(chunk)) + `)`
		if err := g.collect(ctx, q, args, found); err != nil {
			return nil, err
		}
	}

	out := make([]*string, len(keys))
	for i, k := range keys {
		if v, ok := found[k]; ok {
			out[i] = &v
		}
	}
	return out, nil
}

func (g *gateway) collect(ctx context.Context, q string, args []any, into map[string]string) error {
	rows, err := g.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		into[k] = v
	}
	return rows.Err()
}

func (g *gateway) put(ctx context.Context, key, value string) error {
	if _, err := g.stmts.put.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put key: %w", err)
	}
	return nil
}

func (g *gateway) del(ctx context.Context, key string) error {
	if _, err := g.stmts.del.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// clear deletes the keys selected by c. Order and limit are honored
// through a rowid sub-select since DELETE ... LIMIT is a compile-time
// option of SQLite.
func (g *gateway) clear(ctx context.Context, c query.Clause) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %[1]s WHERE rowid IN (SELECT rowid FROM %[1]s%[2]s)`, g.table, c.SQL())
	res, err := g.db.ExecContext(ctx, q, c.Args()...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear range: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// batch applies ops in order inside one transaction. The first failure
// rolls everything back.
func (g *gateway) batch(ctx context.Context, ops []rawOp) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	put := tx.StmtContext(ctx, g.stmts.put)
	del := tx.StmtContext(ctx, g.stmts.del)

	for i, op := range ops {
		kind := "put"
		if op.del {
			kind = "del"
			_, err = del.ExecContext(ctx, op.key)
		} else {
			_, err = put.ExecContext(ctx, op.key, op.value)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				g.log.Error("failed to roll back batch", "error", rbErr)
			}
			g.log.Warn("batch rolled back", "index", i, "type", kind, "size", len(ops), "error", err)
			return fmt.Errorf("batch operation %d (%s): %w", i, kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// cursor is a range scan over a dedicated read-only connection.
type cursor struct {
	db   *sql.DB
	tx   *sql.Tx
	rows *sql.Rows
}

// openCursor opens a fresh read-only connection and pins its snapshot
// before running the range query, so writes committed later stay invisible
// to the scan and the scan never holds the write connection.
func (g *gateway) openCursor(ctx context.Context, c query.Clause) (*cursor, error) {
	db, err := sql.Open(driverName, g.cfg.dsn(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open read connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	cur := &cursor{db: db}

	if cur.tx, err = db.BeginTx(ctx, nil); err != nil {
		_ = cur.release()
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}

	// The first read of a deferred transaction fixes its WAL snapshot.
	var n int
	if err := cur.tx.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		_ = cur.release()
		return nil, fmt.Errorf("failed to pin read snapshot: %w", err)
	}

	if cur.rows, err = cur.tx.QueryContext(ctx, `SELECT key, val FROM `+g.table+c.SQL(), c.Args()...); err != nil {
		_ = cur.release()
		return nil, fmt.Errorf("failed to query range: %w", err)
	}
	return cur, nil
}

func (c *cursor) release() error {
	var errs []error
	if c.rows != nil {
		errs = append(errs, c.rows.Close())
	}
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, c.db.Close())
	return errors.Join(errs...)
}
