package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("1.0.0").Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "1.0.0", status.Version)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestCompositeHealthChecker_OptionalFailureDegrades(t *testing.T) {
	c := NewCompositeHealthChecker("dev")
	c.AddCheck("database", true, NewPingCheck(stubPinger{}))
	c.AddCheck("cache", false, NewPingCheck(stubPinger{err: errors.New("connection refused")}))

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	require.Contains(t, status.Checks, "cache")
	assert.False(t, status.Checks["cache"].Healthy)
	assert.False(t, status.Checks["cache"].Critical)
	assert.Equal(t, "connection refused", status.Checks["cache"].Message)
	assert.Equal(t, "Some checks failed: cache", status.Message)
}

func TestCompositeHealthChecker_CriticalFailure(t *testing.T) {
	c := NewCompositeHealthChecker("dev")
	c.AddCheck("database", true, NewPingCheck(stubPinger{err: errors.New("down")}))
	c.AddCheck("archive", false, NewPingCheck(stubPinger{err: errors.New("locked")}))

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: archive, database", status.Message)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("dev")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}
