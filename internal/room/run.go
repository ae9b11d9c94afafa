package room

import (
	"context"
	"errors"
	"time"
)

const DefaultFrameRateHz = 60

// Run is the frame loop. Inputs arriving between frames are queued and
// handled at the start of the next frame, before Update. It returns nil on
// a quit input or when inputs is closed, and ctx.Err() on cancellation.
func (b *Bridge) Run(ctx context.Context, frameRateHz int, inputs <-chan Input) error {
	if frameRateHz <= 0 {
		frameRateHz = DefaultFrameRateHz
	}
	interval := time.Second / time.Duration(frameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []Input
	last := b.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-inputs:
			if !ok {
				return nil
			}
			pending = append(pending, in)
		case <-ticker.C:
			for _, in := range pending {
				if err := b.Handle(in); err != nil {
					if errors.Is(err, ErrQuit) {
						return nil
					}
					b.logger.Printf("input action=%s arg=%q err=%v", in.Action, in.Arg, err)
				}
			}
			pending = pending[:0]

			now := b.now()
			b.Update(now.Sub(last))
			last = now
		}
	}
}
