package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoReply is returned by Do when the call was not answered in time
var ErrNoReply = errors.New("call produced no reply")

// Do handles call and waits for its first reply. Later replies are dropped
// and stop being forwarded once ctx is cancelled.
func (g *Gateway) Do(ctx context.Context, call Call) (Reply, error) {
	first := make(chan Reply, 1)
	g.Handle(ctx, call, ResultFunc(func(r Reply) {
		select {
		case first <- r:
		default:
		}
	}))

	select {
	case r := <-first:
		return r, nil
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("%w: %w", ErrNoReply, ctx.Err())
	}
}
