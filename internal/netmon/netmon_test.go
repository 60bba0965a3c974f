package netmon

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

func TestMonitor_CheckRealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	m := New(ln.Addr().String(), time.Hour)
	assert.False(t, m.Connected())
	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.Connected())

	ln.Close()
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Connected())
}

func TestMonitor_SubscribeReplaysAndStreamsChanges(t *testing.T) {
	var up atomic.Bool
	m := New("firebase.test:443", time.Hour).WithDialer(func(ctx context.Context, _, _ string) (net.Conn, error) {
		if up.Load() {
			c1, c2 := net.Pipe()
			c2.Close()
			return c1, nil
		}
		return nil, errors.New("unreachable")
	})

	ch, cancel := m.Subscribe()
	defer cancel()
	assert.False(t, <-ch)

	up.Store(true)
	m.Check(context.Background())
	assert.True(t, <-ch)

	// sin cambio no hay evento
	m.Check(context.Background())
	select {
	case v := <-ch:
		t.Fatalf("unexpected event %v", v)
	default:
	}

	up.Store(false)
	m.Check(context.Background())
	assert.False(t, <-ch)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestMonitor_SlowSubscriberSeesLatestState(t *testing.T) {
	var up atomic.Bool
	m := New("firebase.test:443", time.Hour).WithDialer(func(ctx context.Context, _, _ string) (net.Conn, error) {
		if up.Load() {
			c1, c2 := net.Pipe()
			c2.Close()
			return c1, nil
		}
		return nil, errors.New("unreachable")
	})

	ch, cancel := m.Subscribe()
	defer cancel()

	// el suscriptor no lee: más cambios que lugares en el buffer
	for i := 0; i < 9; i++ {
		up.Store(!up.Load())
		m.Check(context.Background())
	}
	require.True(t, m.Connected())

	var last bool
	for n := len(ch); n > 0; n-- {
		last = <-ch
	}
	assert.True(t, last, "the final buffered value is the current state")
}

func TestMonitor_LogsConnectivityChanges(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.L()
	logger.Use(zap.New(core))
	t.Cleanup(func() { logger.Use(prev) })

	var up atomic.Bool
	m := New("firebase.test:443", time.Hour).WithDialer(func(ctx context.Context, _, _ string) (net.Conn, error) {
		if up.Load() {
			c1, c2 := net.Pipe()
			c2.Close()
			return c1, nil
		}
		return nil, errors.New("unreachable")
	})

	m.Check(context.Background())
	assert.Equal(t, 0, logs.Len(), "no change, no log")

	up.Store(true)
	m.Check(context.Background())
	entries := logs.FilterMessage("connectivity changed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["connected"])
	assert.Equal(t, "netmon", entries[0].ContextMap()["component"])
}
