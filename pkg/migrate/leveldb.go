// Package migrate copies data from other key-value engines into a store.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/sqlevel/pkg/level"
)

// DefaultBatchSize is the number of records written per transaction.
const DefaultBatchSize = 1000

// ErrSourceMissing is returned when the LevelDB directory does not exist.
var ErrSourceMissing = errors.New("leveldb source does not exist")

// ImportOptions controls ImportLevelDB.
type ImportOptions struct {
	// Prefix restricts the import to source keys starting with it.
	Prefix string
	// StripPrefix removes Prefix from keys before they are written.
	StripPrefix bool
	// BatchSize is the number of records per chained batch.
	BatchSize int
}

// ImportLevelDB copies records of the LevelDB database in srcDir into dst,
// which may be a sublevel. Records are written in key order through chained
// batches; the source is opened read-only. It returns the number of records
// written.
func ImportLevelDB(ctx context.Context, dst *level.Level, srcDir string, opts ImportOptions) (int, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	src, err := leveldb.OpenFile(srcDir, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("open leveldb %q: %w", srcDir, ErrSourceMissing)
		}
		return 0, fmt.Errorf("open leveldb %q: %w", srcDir, err)
	}
	defer src.Close()

	chunks := make(chan []level.Entry, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(chunks)
		return readChunks(gctx, src, opts, chunks)
	})

	written := 0
	g.Go(func() error {
		for chunk := range chunks {
			b := dst.ChainedBatch()
			for _, e := range chunk {
				if err := b.Put(e.Key, e.Value); err != nil {
					return err
				}
			}
			if err := b.Write(gctx); err != nil {
				return fmt.Errorf("write batch at %q: %w", chunk[0].Key, err)
			}
			written += len(chunk)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}

// readChunks iterates the source in key order and sends BatchSize records
// at a time.
func readChunks(ctx context.Context, src *leveldb.DB, opts ImportOptions, out chan<- []level.Entry) error {
	snap, err := src.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()

	var rng *util.Range
	if opts.Prefix != "" {
		rng = util.BytesPrefix([]byte(opts.Prefix))
	}
	it := snap.NewIterator(rng, nil)
	defer it.Release()

	chunk := make([]level.Entry, 0, opts.BatchSize)
	send := func() error {
		select {
		case out <- chunk:
			chunk = make([]level.Entry, 0, opts.BatchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for it.Next() {
		key := string(it.Key())
		if opts.StripPrefix {
			key = key[len(opts.Prefix):]
		}
		chunk = append(chunk, level.Entry{Key: key, Value: string(it.Value())})
		if len(chunk) == opts.BatchSize {
			if err := send(); err != nil {
				return err
			}
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("leveldb iterate: %w", err)
	}
	if len(chunk) > 0 {
		return send()
	}
	return nil
}
