// Package sqlevel provides an embeddable, ordered key-value store for Go
// backed by a single SQLite file.
//
// sqlevel is a pure Go library built on modernc.org/sqlite (no cgo). Keys and
// values are strings kept in one table with a unique key index, which gives
// LevelDB-style semantics on top of SQLite: sorted range scans, atomic
// batches and namespaced sublevels.
//
// # Key Features
//
//   - Ordered iteration with gt/gte/lt/lte bounds, prefix, reverse and limit.
//   - Snapshot iterators: each scan reads through its own connection and never
//     observes writes committed after it was created.
//   - Atomic batches of puts and deletes, optionally across sublevels.
//   - Sublevels: nested namespaces sharing one table and one connection.
//   - Deferred open: operations issued while the store opens run in order
//     once it is ready.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/liliang-cn/sqlevel"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    db, _ := sqlevel.Open(ctx, "data.db")
//	    defer db.Close()
//
//	    _ = db.Put(ctx, "user:1", "alice")
//	    v, _ := db.Get(ctx, "user:1")
//
//	    it, _ := db.Keys(ctx, sqlevel.Range{Gte: sqlevel.Bound("user:"), Limit: sqlevel.Max(10)})
//	    defer it.Close()
//	    keys, _ := it.All()
//	}
//
// The store itself lives in package level; this package offers Open with
// functional options and aliases for the common types.
package sqlevel
