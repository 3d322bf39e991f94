// Package badger provides a catalog persisted in a BadgerDB directory, so
// writers and readers in separate processes on one host can share it.
//
// Key layout, with <ds> the length-prefixed dataset name:
//
//	ds/<ds>/writers              -> writer count
//	ds/<ds>/var/<name>           -> gob catalog.Variable
//	ds/<ds>/step/<step>/<writer> -> gob catalog.Commit
//	ds/<ds>/fin/<writer>         -> empty
package badger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/robert-malhotra/go-stepio/catalog"
)

const maxTxnRetries = 16

// Catalog is a catalog.Catalog over BadgerDB.
type Catalog struct {
	db     *badgerdb.DB
	ownsDB bool
}

// Open opens (or creates) a catalog in dir.
func Open(dir string) (*Catalog, error) {
	db, err := badgerdb.Open(badgerdb.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger catalog: %w", err)
	}
	return &Catalog{db: db, ownsDB: true}, nil
}

// OpenInMemory opens a catalog that lives only as long as the process.
func OpenInMemory() (*Catalog, error) {
	db, err := badgerdb.Open(badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger catalog: %w", err)
	}
	return &Catalog{db: db, ownsDB: true}, nil
}

// NewFromDB uses an open database, which Close leaves open.
func NewFromDB(db *badgerdb.DB) *Catalog {
	return &Catalog{db: db}
}

func datasetPrefix(name string) string {
	return "ds/" + strconv.Itoa(len(name)) + ":" + name + "/"
}

func writersKey(name string) []byte {
	return []byte(datasetPrefix(name) + "writers")
}

func varPrefix(name string) string {
	return datasetPrefix(name) + "var/"
}

func stepPrefix(name string) string {
	return datasetPrefix(name) + "step/"
}

func commitKey(name string, step, writer int) []byte {
	return []byte(fmt.Sprintf("%s%012d/%06d", stepPrefix(name), step, writer))
}

func finishKey(name string, writer int) []byte {
	return []byte(fmt.Sprintf("%sfin/%06d", datasetPrefix(name), writer))
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent transactions.
func (c *Catalog) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = c.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

func (c *Catalog) closedErr(err error) error {
	if errors.Is(err, badgerdb.ErrDBClosed) {
		return catalog.ErrClosed
	}
	return err
}

// DefineVariables implements catalog.Catalog.
func (c *Catalog) DefineVariables(ctx context.Context, name string, vars []catalog.Variable) error {
	err := c.update(ctx, func(txn *badgerdb.Txn) error {
		for _, v := range vars {
			key := []byte(varPrefix(name) + v.Name)
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badgerdb.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				var old catalog.Variable
				if err := item.Value(func(val []byte) error {
					var derr error
					old, derr = catalog.DecodeRecord[catalog.Variable](val)
					return derr
				}); err != nil {
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
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	return c.closedErr(err)
}

// Variables implements catalog.Catalog.
func (c *Catalog) Variables(ctx context.Context, name string) ([]catalog.Variable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var vars []catalog.Variable
	err := c.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(varPrefix(name))
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				v, err := catalog.DecodeRecord[catalog.Variable](val)
				if err != nil {
					return err
				}
				vars = append(vars, v)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return vars, c.closedErr(err)
}

func claimWriters(txn *badgerdb.Txn, name string, writers int) error {
	item, err := txn.Get(writersKey(name))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return txn.Set(writersKey(name), []byte(strconv.Itoa(writers)))
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if have, _ := strconv.Atoi(string(val)); have != writers {
			return fmt.Errorf("%w: dataset has %d writers, got %d", catalog.ErrConflict, have, writers)
		}
		return nil
	})
}

func (c *Catalog) record(ctx context.Context, name string, writers, step int, commit catalog.Commit) error {
	data, err := catalog.EncodeRecord(commit)
	if err != nil {
		return err
	}
	err = c.update(ctx, func(txn *badgerdb.Txn) error {
		if err := claimWriters(txn, name, writers); err != nil {
			return err
		}
		key := commitKey(name, step, commit.Writer)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: writer %d already settled step %d", catalog.ErrConflict, commit.Writer, step)
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	return c.closedErr(err)
}

// CommitStep implements catalog.Catalog.
func (c *Catalog) CommitStep(ctx context.Context, name string, writer, writers, step int, blocks []catalog.Block) error {
	return c.record(ctx, name, writers, step, catalog.Commit{Writer: writer, Blocks: blocks})
}

// AbortStep implements catalog.Catalog.
func (c *Catalog) AbortStep(ctx context.Context, name string, writer, writers, step int) error {
	return c.record(ctx, name, writers, step, catalog.Commit{Writer: writer, Aborted: true})
}

// load reads the writer count, every commit and the finished count.
func (c *Catalog) load(ctx context.Context, name string) (int, map[int][]catalog.Commit, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, 0, err
	}

	var (
		writers  int
		finished int
		commits  = make(map[int][]catalog.Commit)
	)
	err := c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(writersKey(name))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			writers, err = strconv.Atoi(string(val))
			return err
		}); err != nil {
			return err
		}

		prefix := []byte(stepPrefix(name))
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			stepText, _, _ := strings.Cut(rest, "/")
			step, err := strconv.Atoi(stepText)
			if err != nil {
				return fmt.Errorf("malformed commit key %q", it.Item().Key())
			}
			err = it.Item().Value(func(val []byte) error {
				cm, err := catalog.DecodeRecord[catalog.Commit](val)
				if err != nil {
					return err
				}
				commits[step] = append(commits[step], cm)
				return nil
			})
			if err != nil {
				return err
			}
		}

		finPrefix := []byte(datasetPrefix(name) + "fin/")
		fopts := badgerdb.DefaultIteratorOptions
		fopts.Prefix = finPrefix
		fopts.PrefetchValues = false
		fit := txn.NewIterator(fopts)
		defer fit.Close()
		for fit.Seek(finPrefix); fit.ValidForPrefix(finPrefix); fit.Next() {
			finished++
		}
		return nil
	})
	return writers, commits, finished, c.closedErr(err)
}

// Step implements catalog.Catalog.
func (c *Catalog) Step(ctx context.Context, name string, step int) ([]catalog.Block, error) {
	writers, commits, finished, err := c.load(ctx, name)
	if err != nil {
		return nil, err
	}
	st := catalog.Summarize(writers, commits, finished)
	found := false
	for _, s := range st.Steps {
		found = found || s == step
	}
	if !found {
		return nil, fmt.Errorf("%w: step %d of %q", catalog.ErrNotFound, step, name)
	}

	var blocks []catalog.Block
	for _, cm := range commits[step] {
		blocks = append(blocks, cm.Blocks...)
	}
	catalog.SortBlocks(blocks)
	return blocks, nil
}

// Status implements catalog.Catalog.
func (c *Catalog) Status(ctx context.Context, name string) (catalog.Status, error) {
	writers, commits, finished, err := c.load(ctx, name)
	if err != nil {
		return catalog.Status{}, err
	}
	return catalog.Summarize(writers, commits, finished), nil
}

// Finish implements catalog.Catalog.
func (c *Catalog) Finish(ctx context.Context, name string, writer, writers int) error {
	err := c.update(ctx, func(txn *badgerdb.Txn) error {
		if err := claimWriters(txn, name, writers); err != nil {
			return err
		}
		return txn.Set(finishKey(name, writer), []byte{})
	})
	return c.closedErr(err)
}

// Close closes the database if the catalog opened it.
func (c *Catalog) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

var _ catalog.Catalog = (*Catalog)(nil)
