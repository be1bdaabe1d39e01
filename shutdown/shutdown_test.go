package shutdown

import (
	"context"
	"testing"
)

func TestContextFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := Context(parent)
	defer stop()

	if ctx.Err() != nil {
		t.Fatal("context cancelled early")
	}
	cancel()
	<-ctx.Done()
}
