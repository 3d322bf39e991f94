// Package sqlite provides a catalog stored in SQLite through database/sql.
//
// It expects an *sql.DB that uses a SQLite driver; Open uses
// "modernc.org/sqlite", which is pure Go.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/robert-malhotra/go-stepio/catalog"
)

// Catalog is a catalog.Catalog over SQLite.
type Catalog struct {
	db     *sql.DB
	ownsDB bool
}

// Open opens the database file at path (":memory:" for a private
// in-memory database) and initialises the schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	c, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

// New initialises the schema in db and returns a catalog over it.
func New(db *sql.DB) (*Catalog, error) {
	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		return nil, fmt.Errorf("init sqlite catalog schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			name TEXT PRIMARY KEY,
			writers INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS variables (
			dataset TEXT NOT NULL,
			name TEXT NOT NULL,
			record BLOB NOT NULL,
			PRIMARY KEY (dataset, name)
		);
		CREATE TABLE IF NOT EXISTS commits (
			dataset TEXT NOT NULL,
			step INTEGER NOT NULL,
			writer INTEGER NOT NULL,
			aborted INTEGER NOT NULL,
			record BLOB NOT NULL,
			PRIMARY KEY (dataset, step, writer)
		);
		CREATE TABLE IF NOT EXISTS finished (
			dataset TEXT NOT NULL,
			writer INTEGER NOT NULL,
			PRIMARY KEY (dataset, writer)
		);`,
	)
	return err
}

func (c *Catalog) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return closedErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func closedErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "database is closed") {
		return catalog.ErrClosed
	}
	return err
}

// DefineVariables implements catalog.Catalog.
func (c *Catalog) DefineVariables(ctx context.Context, dataset string, vars []catalog.Variable) error {
	return c.tx(ctx, func(tx *sql.Tx) error {
		for _, v := range vars {
			var raw []byte
			err := tx.QueryRowContext(ctx,
				`SELECT record FROM variables WHERE dataset = ? AND name = ?`, dataset, v.Name,
			).Scan(&raw)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return err
			default:
				old, err := catalog.DecodeRecord[catalog.Variable](raw)
				if err != nil {
					return err
				}
				if !old.Compatible(v) {
					return fmt.Errorf("%w: variable %q redefined", catalog.ErrConflict, v.Name)
				}
			}

			data, err := catalog.EncodeRecord(v)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO variables (dataset, name, record) VALUES (?, ?, ?)
				ON CONFLICT (dataset, name) DO UPDATE SET record = excluded.record`,
				dataset, v.Name, data,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Variables implements catalog.Catalog.
func (c *Catalog) Variables(ctx context.Context, dataset string) ([]catalog.Variable, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT record FROM variables WHERE dataset = ? ORDER BY name`, dataset)
	if err != nil {
		return nil, closedErr(err)
	}
	defer rows.Close()

	var vars []catalog.Variable
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := catalog.DecodeRecord[catalog.Variable](raw)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

func claimWriters(ctx context.Context, tx *sql.Tx, dataset string, writers int) error {
	var have int
	err := tx.QueryRowContext(ctx, `SELECT writers FROM datasets WHERE name = ?`, dataset).Scan(&have)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx, `INSERT INTO datasets (name, writers) VALUES (?, ?)`, dataset, writers)
		return err
	}
	if err != nil {
		return err
	}
	if have != writers {
		return fmt.Errorf("%w: dataset has %d writers, got %d", catalog.ErrConflict, have, writers)
	}
	return nil
}

func (c *Catalog) record(ctx context.Context, dataset string, writers, step int, commit catalog.Commit) error {
	data, err := catalog.EncodeRecord(commit)
	if err != nil {
		return err
	}
	return c.tx(ctx, func(tx *sql.Tx) error {
		if err := claimWriters(ctx, tx, dataset, writers); err != nil {
			return err
		}
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM commits WHERE dataset = ? AND step = ? AND writer = ?`,
			dataset, step, commit.Writer,
		).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: writer %d already settled step %d", catalog.ErrConflict, commit.Writer, step)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO commits (dataset, step, writer, aborted, record) VALUES (?, ?, ?, ?, ?)`,
			dataset, step, commit.Writer, commit.Aborted, data,
		)
		return err
	})
}

// CommitStep implements catalog.Catalog.
func (c *Catalog) CommitStep(ctx context.Context, dataset string, writer, writers, step int, blocks []catalog.Block) error {
	return c.record(ctx, dataset, writers, step, catalog.Commit{Writer: writer, Blocks: blocks})
}

// AbortStep implements catalog.Catalog.
func (c *Catalog) AbortStep(ctx context.Context, dataset string, writer, writers, step int) error {
	return c.record(ctx, dataset, writers, step, catalog.Commit{Writer: writer, Aborted: true})
}

func (c *Catalog) load(ctx context.Context, dataset string, withBlocks bool) (int, map[int][]catalog.Commit, int, error) {
	var writers int
	err := c.db.QueryRowContext(ctx, `SELECT writers FROM datasets WHERE name = ?`, dataset).Scan(&writers)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, 0, nil
	}
	if err != nil {
		return 0, nil, 0, closedErr(err)
	}

	query := `SELECT step, writer, aborted, NULL FROM commits WHERE dataset = ?`
	if withBlocks {
		query = `SELECT step, writer, aborted, record FROM commits WHERE dataset = ?`
	}
	rows, err := c.db.QueryContext(ctx, query, dataset)
	if err != nil {
		return 0, nil, 0, err
	}
	defer rows.Close()

	commits := make(map[int][]catalog.Commit)
	for rows.Next() {
		var (
			step int
			cm   catalog.Commit
			raw  []byte
		)
		if err := rows.Scan(&step, &cm.Writer, &cm.Aborted, &raw); err != nil {
			return 0, nil, 0, err
		}
		if withBlocks && len(raw) > 0 {
			full, err := catalog.DecodeRecord[catalog.Commit](raw)
			if err != nil {
				return 0, nil, 0, err
			}
			cm.Blocks = full.Blocks
		}
		commits[step] = append(commits[step], cm)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, 0, err
	}

	var finished int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM finished WHERE dataset = ?`, dataset,
	).Scan(&finished); err != nil {
		return 0, nil, 0, err
	}
	return writers, commits, finished, nil
}

// Step implements catalog.Catalog.
func (c *Catalog) Step(ctx context.Context, dataset string, step int) ([]catalog.Block, error) {
	writers, commits, finished, err := c.load(ctx, dataset, true)
	if err != nil {
		return nil, err
	}
	st := catalog.Summarize(writers, commits, finished)
	visible := false
	for _, s := range st.Steps {
		visible = visible || s == step
	}
	if !visible {
		return nil, fmt.Errorf("%w: step %d of %q", catalog.ErrNotFound, step, dataset)
	}

	var blocks []catalog.Block
	for _, cm := range commits[step] {
		blocks = append(blocks, cm.Blocks...)
	}
	catalog.SortBlocks(blocks)
	return blocks, nil
}

// Status implements catalog.Catalog.
func (c *Catalog) Status(ctx context.Context, dataset string) (catalog.Status, error) {
	writers, commits, finished, err := c.load(ctx, dataset, false)
	if err != nil {
		return catalog.Status{}, err
	}
	return catalog.Summarize(writers, commits, finished), nil
}

// Finish implements catalog.Catalog.
func (c *Catalog) Finish(ctx context.Context, dataset string, writer, writers int) error {
	return c.tx(ctx, func(tx *sql.Tx) error {
		if err := claimWriters(ctx, tx, dataset, writers); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO finished (dataset, writer) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			dataset, writer,
		)
		return err
	})
}

// Close closes the database if the catalog opened it.
func (c *Catalog) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

var _ catalog.Catalog = (*Catalog)(nil)
