// Package indexdb keeps a queryable SQLite index of dispatched commands. The
// zstd journal stays the source of truth; the index may drop rows when its
// writer falls behind.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"escaperoom.ai/internal/room"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan room.DispatchRecord
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends against close(ch): producers hold it shared.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	written atomic.Uint64
	failed  atomic.Uint64
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DroppedTotal  uint64
	WrittenTotal  uint64
	FailedTotal   uint64
}

const defaultQueue = 4096

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan room.DispatchRecord, defaultQueue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			entity TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			tx_hash TEXT,
			facts INTEGER NOT NULL,
			enqueued_at TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_kind_status ON dispatches(kind, status);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued rows, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordDispatch satisfies room.Recorder and never blocks.
func (s *SQLiteIndex) RecordDispatch(r room.DispatchRecord) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DroppedTotal:  s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
		FailedTotal:   s.failed.Load(),
	}
}

// Recent returns up to limit rows, newest first.
func (s *SQLiteIndex) Recent(ctx context.Context, limit int) ([]room.DispatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,kind,entity,status,COALESCE(error,''),COALESCE(tx_hash,''),facts,enqueued_at,started_at,duration_ms
		FROM dispatches ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []room.DispatchRecord
	for rows.Next() {
		var (
			r                 room.DispatchRecord
			kind              string
			enqueued, started string
		)
		if err := rows.Scan(&r.ID, &kind, &r.Entity, &r.Status, &r.Error, &r.TxHash, &r.Facts, &enqueued, &started, &r.DurationMS); err != nil {
			return nil, err
		}
		r.Kind = room.Kind(kind)
		r.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueued)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus returns kind -> status -> count.
func (s *SQLiteIndex) CountByStatus(ctx context.Context) (map[room.Kind]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind,status,COUNT(*) FROM dispatches GROUP BY kind,status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[room.Kind]map[string]int{}
	for rows.Next() {
		var (
			kind, status string
			n            int
		)
		if err := rows.Scan(&kind, &status, &n); err != nil {
			return nil, err
		}
		k := room.Kind(kind)
		if out[k] == nil {
			out[k] = map[string]int{}
		}
		out[k][status] = n
	}
	return out, rows.Err()
}

const (
	batchMaxRows = 200
	batchMaxAge  = time.Second
)

// batch groups inserts into one transaction. Rows are counted as written or
// failed when the transaction ends.
type batch struct {
	idx    *SQLiteIndex
	insert *sql.Stmt
	tx     *sql.Tx
	rows   int
	opened time.Time
}

func (b *batch) add(r room.DispatchRecord) {
	if b.tx == nil {
		tx, err := b.idx.db.Begin()
		if err != nil {
			b.idx.failed.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		b.tx, b.rows, b.opened = tx, 0, time.Now()
	}
	_, err := b.tx.Stmt(b.insert).Exec(
		r.ID, string(r.Kind), r.Entity, r.Status,
		nullable(r.Error), nullable(r.TxHash), r.Facts,
		r.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.DurationMS,
	)
	if err != nil {
		b.idx.failed.Add(1)
		b.end(false)
		return
	}
	b.rows++
}

func (b *batch) due(queued int) bool {
	return b.tx != nil && (queued == 0 || b.rows >= batchMaxRows || time.Since(b.opened) >= batchMaxAge)
}

func (b *batch) end(commit bool) {
	if b.tx == nil {
		return
	}
	n := uint64(b.rows)
	if commit && b.tx.Commit() == nil {
		b.idx.written.Add(n)
	} else {
		if !commit {
			_ = b.tx.Rollback()
		}
		b.idx.failed.Add(n)
	}
	b.tx, b.rows = nil, 0
}

func (s *SQLiteIndex) loop() {
	insert, err := s.db.Prepare(`INSERT OR REPLACE INTO dispatches(id,kind,entity,status,error,tx_hash,facts,enqueued_at,started_at,duration_ms) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		// Keep draining so producers never see a full queue for a dead writer.
		for range s.ch {
			s.failed.Add(1)
		}
		return
	}
	defer insert.Close()

	b := &batch{idx: s, insert: insert}
	for r := range s.ch {
		b.add(r)
		// A quiet queue commits right away so queries see fresh rows.
		if b.due(len(s.ch)) {
			b.end(true)
		}
	}
	b.end(true)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
