package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowAppliesTimeout(t *testing.T) {
	cr := NewCron(time.UTC, 20*time.Millisecond)
	defer cr.Stop()

	err := cr.RunNow(FuncJob{JobName: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAddReplacesSameName(t *testing.T) {
	cr := NewCron(time.UTC, time.Second)
	defer cr.Stop()

	job := FuncJob{JobName: "purge", Fn: func(ctx context.Context) error { return nil }}
	_, err := cr.Add("@every 1h", job)
	require.NoError(t, err)
	_, err = cr.Add("@every 2h", job)
	require.NoError(t, err)
	assert.Len(t, cr.Entries(), 1)

	_, err = cr.Add("not a spec", job)
	assert.Error(t, err)
}

func TestRunNowReturnsJobError(t *testing.T) {
	cr := NewCron(nil, 0)
	defer cr.Stop()
	boom := errors.New("boom")
	assert.ErrorIs(t, cr.RunNow(FuncJob{JobName: "x", Fn: func(context.Context) error { return boom }}), boom)
}
