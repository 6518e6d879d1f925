package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTarget struct {
	calls chan struct{}
	err   error
}

func (c *countingTarget) Invalidate(context.Context) error {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return c.err
}

func TestNewRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"", "every day", "61 * * * *"} {
		_, err := New(spec, &countingTarget{})
		assert.Error(t, err, spec)
	}
}

func TestNextIsScheduledAfterStart(t *testing.T) {
	s, err := New("@daily", &countingTarget{})
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	defer s.Stop(context.Background())

	next := s.Next()
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(25*time.Hour)))
}

func TestRefreshInvalidatesTarget(t *testing.T) {
	for _, target := range []*countingTarget{
		{calls: make(chan struct{}, 1)},
		{calls: make(chan struct{}, 1), err: errors.New("redis down")},
	} {
		s, err := New("@every 1s", target)
		require.NoError(t, err)
		s.Start()

		select {
		case <-target.calls:
		case <-time.After(5 * time.Second):
			t.Fatal("refresh job did not run")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.Stop(ctx)
		cancel()
	}
}
