package detect

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunSupervised runs fn in an errgroup goroutine and restarts it with
// exponential backoff when it panics. Used for long-lived trigger loops
// (inventory polling, notification pumps) that must outlive a misbehaving
// collaborator.
//
// A returned error keeps errgroup semantics: it cancels the group's derived
// context and surfaces through Wait(). Cancelling ctx stops the restart loop.
//
// Panics are reported to stderr rather than the structured logger: the panic
// may originate from the logging path itself.
func RunSupervised(ctx context.Context, group *errgroup.Group, name string, fn func(context.Context) error) {
	if group == nil || fn == nil {
		return
	}
	group.Go(func() (err error) {
		backoff := 200 * time.Millisecond
		const maxBackoff = 30 * time.Second
		for {
			if ctx != nil && ctx.Err() != nil {
				return nil
			}

			var recovered any
			func() {
				defer func() {
					recovered = recover()
				}()
				err = fn(ctx)
			}()
			if recovered == nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stderr, "WARN: %s panicked: %v\n%s\n", name, recovered, debug.Stack())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	})
}
