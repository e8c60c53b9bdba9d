// Package actionlog implements the append-ordered action log: a single,
// host-wide sequence of appended actions that every module-version fold
// reads from. Two backends are provided: Local, an
// in-process variant for tests and single-node deployments, and
// Postgres, a durable variant using transactional append and
// LISTEN/NOTIFY-driven watch.
package actionlog

import (
	"context"

	"github.com/foldnet/gameserver/internal/domain"
)

// ActionLog is the append-ordered log contract shared by all backends.
type ActionLog interface {
	// Append adds action to the end of the log under moduleID and
	// returns its assigned index. Indices are dense and start at 0.
	Append(ctx context.Context, moduleID domain.ModuleId, action domain.ActionBlob) (uint64, error)

	// Fetch returns the entry committed at index. It returns
	// domain.ErrLogCorrupt if the log's reported length exceeds index
	// but the entry itself cannot be retrieved.
	Fetch(ctx context.Context, index uint64) (domain.LogEntry, error)

	// Len returns the current committed length of the log (the number
	// of entries; the next Append will be assigned index Len()).
	Len(ctx context.Context) (uint64, error)

	// Watch returns a channel of strictly increasing log lengths,
	// starting from at least from. The channel is closed when ctx is
	// done. Implementations must never emit a value lower than one
	// already emitted (the fill-in-gaps/ratchet discipline).
	Watch(ctx context.Context, from uint64) (<-chan uint64, error)

	Close() error
}
