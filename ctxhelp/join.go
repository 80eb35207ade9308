package ctxhelp

import "context"

// Join returns a context derived from parent that is also canceled, with the
// same cause, when other is done. Calling cancel releases the link to other.
func Join(parent, other context.Context) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(other, func() {
		cancel(context.Cause(other))
	})

	return ctx, func(cause error) {
		stop()
		cancel(cause)
	}
}
