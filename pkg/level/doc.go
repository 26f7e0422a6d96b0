// Package level implements an ordered key-value store over a single SQLite
// table.
//
// Keys and values are strings. Keys sort in SQLite's bytewise order and are
// unique through an index on the key column. On top of get/put/del the store
// offers range iteration, range deletion, atomic batches and sublevels:
// namespaced views that share one table by prefixing their keys.
//
// # Lifecycle
//
// New returns a store in StatusOpening. Operations issued before Open
// completes are queued and run in submission order once the store is open;
// they fail with ErrNotOpen if the open fails or Close comes first.
//
// # Iteration
//
// Every iterator opens its own read-only connection and pins a snapshot when
// it is created, so a scan neither blocks nor observes writes that commit
// later. Closing the store closes every iterator still open, including the
// ones created through sublevels.
//
//	db, _ := level.New("data.db")
//	_ = db.Open(ctx)
//	defer db.Close()
//
//	users, _ := db.Sublevel("users")
//	_ = users.Put(ctx, "alice", "admin")
//
//	it, _ := users.Iterator(ctx, level.Range{Gte: level.Bound("a"), Limit: level.Max(10)})
//	defer it.Close()
//	for {
//	    e, ok, err := it.Next()
//	    if err != nil || !ok {
//	        break
//	    }
//	    fmt.Println(e.Key, e.Value)
//	}
package level
