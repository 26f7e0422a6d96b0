package level

import (
	"context"
	"sync"
)

// OpType is the kind of a batch operation.
type OpType int

const (
	OpPut OpType = iota
	OpDel
)

func (t OpType) String() string {
	switch t {
	case OpPut:
		return "put"
	case OpDel:
		return "del"
	default:
		return "unknown"
	}
}

// Operation is one write of a batch. Sublevel, when set, overrides the
// Level the batch is applied to.
type Operation struct {
	Type     OpType
	Key      string
	Value    string
	Sublevel *Level
}

// PutOp returns a put operation.
func PutOp(key, value string) Operation {
	return Operation{Type: OpPut, Key: key, Value: value}
}

// DelOp returns a delete operation.
func DelOp(key string) Operation {
	return Operation{Type: OpDel, Key: key}
}

// In returns op retargeted at sublevel sub.
func (op Operation) In(sub *Level) Operation {
	op.Sublevel = sub
	return op
}

// ChainedBatch accumulates operations and commits them with a single Write.
// After Write succeeds or Close is called, every method fails with
// ErrBatchClosed.
type ChainedBatch struct {
	db   *Level
	mu   sync.Mutex
	ops  []Operation
	done bool
}

// Put queues a put of key.
func (b *ChainedBatch) Put(key, value string) error {
	return b.add(PutOp(key, value))
}

// Del queues a delete of key.
func (b *ChainedBatch) Del(key string) error {
	return b.add(DelOp(key))
}

// PutIn queues a put into sublevel sub.
func (b *ChainedBatch) PutIn(sub *Level, key, value string) error {
	return b.add(PutOp(key, value).In(sub))
}

// DelIn queues a delete from sublevel sub.
func (b *ChainedBatch) DelIn(sub *Level, key string) error {
	return b.add(DelOp(key).In(sub))
}

func (b *ChainedBatch) add(op Operation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return wrapError("batch.add", CodeBatchNotOpen, ErrBatchClosed)
	}
	b.ops = append(b.ops, op)
	return nil
}

// Clear drops the queued operations.
func (b *ChainedBatch) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return wrapError("batch.clear", CodeBatchNotOpen, ErrBatchClosed)
	}
	b.ops = nil
	return nil
}

// Len returns the number of queued operations.
func (b *ChainedBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Write commits the queued operations atomically. A failed Write leaves the
// batch usable.
func (b *ChainedBatch) Write(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return wrapError("batch.write", CodeBatchNotOpen, ErrBatchClosed)
	}
	if err := b.db.Batch(ctx, b.ops...); err != nil {
		return err
	}
	b.done = true
	b.ops = nil
	return nil
}

// Close discards the batch. It is idempotent.
func (b *ChainedBatch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.ops = nil
	return nil
}
