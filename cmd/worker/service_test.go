package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/motorhub/marketplace-backend/pkg/logger"
)

type fakePinger struct {
	err   error
	calls int
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls++
	return p.err
}

type fakeConsumer struct {
	err     error
	runs    int
	started chan struct{}
}

func (c *fakeConsumer) Run(ctx context.Context) error {
	c.runs++
	if c.started != nil {
		close(c.started)
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, db, redis, ps *fakePinger, c *fakeConsumer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:               testLogger(),
		DB:                   db,
		Redis:                redis,
		PubSub:               ps,
		NotificationConsumer: c,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunStopsOnFailedDependency(t *testing.T) {
	ps := &fakePinger{err: errors.New("topic missing")}
	c := &fakeConsumer{}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, ps, c)

	err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("expected readiness error")
	}
	if c.runs != 0 {
		t.Fatal("consumer should not start")
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	c := &fakeConsumer{err: errors.New("receive failed")}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, &fakePinger{}, c)

	if err := svc.Run(context.Background()); err == nil || err.Error() != "receive failed" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &fakeConsumer{started: make(chan struct{})}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, &fakePinger{}, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-c.started
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error")
	}
}
