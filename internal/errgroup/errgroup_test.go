package errgroup_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/internal/errgroup"
)

func TestGroupCollectsFirstError(t *testing.T) {
	g, ctx := errgroup.WithContext(context.Background())
	boom := errors.New("boom")

	g.Go(func() error { return nil })
	g.Go(func() error { return boom })

	err := g.Wait()
	require.Error(t, err)
	assert.Equal(t, boom, err)
	assert.Error(t, ctx.Err())
}

func TestGroupAllSucceed(t *testing.T) {
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < 5; i++ {
		g.Go(func() error { return nil })
	}
	assert.NoError(t, g.Wait())
}
