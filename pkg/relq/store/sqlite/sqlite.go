package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/store"
	"github.com/cognicore/relq/pkg/relq/term"
)

// MemoryDSN keeps the database inside the process.
const MemoryDSN = ":memory:"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a fact store backed by SQLite. An empty dsn or
// MemoryDSN keeps everything in memory on a single connection; file DSNs are
// opened in WAL mode so snapshots do not block writers.
func OpenSQLite(ctx context.Context, dsn string) (store.Store, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if isMemory(dsn) {
		// Every connection to an unnamed memory database is a new database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") || strings.Contains(dsn, "mode=memory")
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fact_key TEXT UNIQUE NOT NULL,
	predicate TEXT NOT NULL,
	arity INTEGER NOT NULL,
	args TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_relation ON facts(predicate, arity, id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Assert inserts a fact, ignoring duplicates
func (s *sqliteStore) Assert(ctx context.Context, f term.Fact) error {
	if f.IsZero() {
		return fmt.Errorf("%w: empty fact", internalerr.ErrInvalidFact)
	}
	args, err := encodeArgs(f)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO facts (fact_key, predicate, arity, args)
VALUES (?, ?, ?, ?)
ON CONFLICT(fact_key) DO NOTHING;
`
	_, err = s.db.ExecContext(ctx, stmt, encode(f.Key()), encode(f.Predicate().Name()), f.Arity(), args)
	return err
}

// Retract deletes a fact if present
func (s *sqliteStore) Retract(ctx context.Context, f term.Fact) error {
	if f.IsZero() {
		return fmt.Errorf("%w: empty fact", internalerr.ErrInvalidFact)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE fact_key = ?`, encode(f.Key()))
	return err
}

// Reset deletes every fact
func (s *sqliteStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM facts`)
	return err
}

// Len counts stored facts
func (s *sqliteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Contains reports whether f is stored
func (s *sqliteStore) Contains(ctx context.Context, f term.Fact) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM facts WHERE fact_key = ? LIMIT 1`, encode(f.Key())).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot opens a transaction; every read through the snapshot sees the
// same database state.
func (s *sqliteStore) Snapshot(ctx context.Context) (store.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	// SQLite pins the read snapshot at the first read, not at BEGIN.
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&n); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &snapshot{tx: tx}, nil
}

type snapshot struct {
	tx *sql.Tx
}

func (sn *snapshot) Release() error {
	err := sn.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (sn *snapshot) FactsFor(ctx context.Context, rel store.Relation) iter.Seq2[term.Fact, error] {
	return sn.query(ctx, rel, nil, nil)
}

func (sn *snapshot) Candidates(ctx context.Context, p term.Pattern) iter.Seq2[term.Fact, error] {
	pred, ok := p.Predicate().Symbol()
	if !ok {
		return store.Fail(fmt.Errorf("%w: candidates need a symbol predicate, got %s", internalerr.ErrInvalidPattern, p))
	}
	cols, syms := store.Bound(p)
	return sn.query(ctx, store.Relation{Predicate: pred, Arity: p.Arity()}, cols, syms)
}

// query loads the matching rows eagerly and yields them afterwards, so the
// caller can nest further queries on the same transaction while iterating.
func (sn *snapshot) query(ctx context.Context, rel store.Relation, cols []int, syms []term.Symbol) iter.Seq2[term.Fact, error] {
	return func(yield func(term.Fact, error) bool) {
		facts, err := sn.load(ctx, rel, cols, syms)
		if err != nil {
			yield(term.Fact{}, err)
			return
		}
		for _, f := range facts {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (sn *snapshot) load(ctx context.Context, rel store.Relation, cols []int, syms []term.Symbol) ([]term.Fact, error) {
	var b strings.Builder
	b.WriteString(`SELECT args FROM facts WHERE predicate = ? AND arity = ?`)
	params := []any{encode(rel.Predicate.Name()), rel.Arity}
	for i, col := range cols {
		fmt.Fprintf(&b, ` AND json_extract(args, '$[%d]') = ?`, col-1)
		params = append(params, encode(syms[i].Name()))
	}
	b.WriteString(` ORDER BY id`)

	rows, err := sn.tx.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []term.Fact
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		f, err := decodeFact(rel.Predicate, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (sn *snapshot) Relations(ctx context.Context) ([]store.Relation, error) {
	rows, err := sn.tx.QueryContext(ctx, `SELECT DISTINCT predicate, arity FROM facts ORDER BY predicate, arity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Relation
	for rows.Next() {
		var pred string
		var arity int
		if err := rows.Scan(&pred, &arity); err != nil {
			return nil, err
		}
		name, err := decode(pred)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Relation{Predicate: term.Intern(name), Arity: arity})
	}
	return out, rows.Err()
}

// Symbols are stored hex-encoded: text columns and JSON would not keep
// arbitrary bytes, and hex keeps the byte order ORDER BY relies on.
func encode(name string) string { return hex.EncodeToString([]byte(name)) }

func decode(col string) (string, error) {
	b, err := hex.DecodeString(col)
	if err != nil {
		return "", fmt.Errorf("decode symbol %q: %w", col, err)
	}
	return string(b), nil
}

func encodeArgs(f term.Fact) (string, error) {
	names := f.Names()[1:]
	args := make([]string, len(names))
	for i, n := range names {
		args[i] = encode(n)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFact(pred term.Symbol, raw string) (term.Fact, error) {
	var args []string
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return term.Fact{}, fmt.Errorf("decode fact args %q: %w", raw, err)
	}
	syms := make([]term.Symbol, len(args))
	for i, a := range args {
		name, err := decode(a)
		if err != nil {
			return term.Fact{}, err
		}
		syms[i] = term.Intern(name)
	}
	return term.NewFact(pred, syms...)
}
