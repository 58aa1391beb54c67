// Package journal records the engine's lifecycle actions: buys submitted,
// protective orders created and modified, cleanups, and aborted work. The
// durable backend is SQLite, with completed days archived to parquet.
package journal

import (
	"context"
	"time"
)

// Entry kinds.
const (
	KindBuy     = "buy"      // buy order submitted
	KindCreate  = "create"   // protective order created
	KindModify  = "modify"   // protective order quantity modified
	KindCancel  = "cancel"   // cancel issued for a competing or orphaned order
	KindConfirm = "confirm"  // protective order acknowledged by the feed
	KindCleanup = "cleanup"  // symbol state cleared after position closure
	KindAbort   = "abort"    // synchronization aborted (stale entry, flat position)
	KindError   = "error"    // brokerage call failed
	KindReap    = "reap"     // stale or orphaned entry removed by the reaper
)

// Entry is one journaled action.
type Entry struct {
	Time    time.Time `json:"time" parquet:"time"`
	Kind    string    `json:"kind" parquet:"kind"`
	Symbol  string    `json:"symbol" parquet:"symbol"`
	OrderID string    `json:"order_id,omitempty" parquet:"order_id,optional"`
	Status  string    `json:"status,omitempty" parquet:"status,optional"`
	Qty     float64   `json:"qty,omitempty" parquet:"qty,optional"`
	Price   float64   `json:"price,omitempty" parquet:"price,optional"`
	Note    string    `json:"note,omitempty" parquet:"note,optional"`
}

// Recorder accepts journal entries. Implementations must tolerate being
// called from multiple goroutines.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop is a Recorder that discards everything. Handy default for tests.
type Nop struct{}

// Record discards the entry.
func (Nop) Record(context.Context, Entry) {}

// Multi fans each entry out to every recorder in order.
type Multi []Recorder

// Record forwards the entry to every underlying recorder.
func (m Multi) Record(ctx context.Context, e Entry) {
	for _, r := range m {
		r.Record(ctx, e)
	}
}
