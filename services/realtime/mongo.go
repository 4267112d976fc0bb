package realtime

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"dbautorest/pkg/logger"
)

// changeWatcher is implemented by the mongodb executor.
type changeWatcher interface {
	Watch(ctx context.Context, collection string) (*mongo.ChangeStream, error)
}

// watchCollection calls fn for every change on collection until ctx ends.
func watchCollection(ctx context.Context, w changeWatcher, collection string, fn func()) error {
	cs, err := w.Watch(ctx, collection)
	if err != nil {
		return fmt.Errorf("open change stream on %s: %w", collection, err)
	}
	go func() {
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			fn()
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			logger.Warnf("change stream on %s ended: %v", collection, err)
		}
	}()
	return nil
}
