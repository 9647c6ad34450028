package batch

import (
	"context"

	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/scanning"
)

type result struct {
	source Source
	scan   *scanning.Scan
	err    error
}

func decodeOne(ctx context.Context, src Source) result {
	data, err := src.Read(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result{source: src, err: ctxErr}
		}
		if !errors.IsSourceError(err) {
			err = errors.ErrSourceRead(src.Name(), err)
		}
		return result{source: src, err: err}
	}

	scan, err := scanning.Decode(data)
	if err != nil {
		return result{source: src, err: errors.AttachSource(err, src.Name())}
	}
	return result{source: src, scan: scan}
}

// decodeAll decodes sources and hands each result to emit in source order.
// With more than one worker, up to c.workers sources are read and decoded
// ahead of the one being emitted. emit always runs on the calling goroutine.
func (c *Collector) decodeAll(ctx context.Context, sources []Source, emit func(result) error) error {
	if c.workers <= 1 {
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(decodeOne(ctx, src)); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan result, len(sources))
	for i := range results {
		results[i] = make(chan result, 1)
	}
	window := make(chan struct{}, c.workers)

	go func() {
		for i, src := range sources {
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(i int, src Source) {
				results[i] <- decodeOne(ctx, src)
			}(i, src)
		}
	}()

	for i := range sources {
		var res result
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
		<-window

		if err := emit(res); err != nil {
			return err
		}
	}
	return nil
}
