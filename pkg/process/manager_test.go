package process_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/process"
)

func TestManager_ShutdownRunsHandlersInReverse(t *testing.T) {
	m := process.NewManager(logger.Nop())

	var order []string
	m.RegisterShutdownHandler(func() { order = append(order, "first") })
	m.RegisterShutdownHandler(func() { order = append(order, "second") })

	m.Shutdown()

	if strings.Join(order, ",") != "second,first" {
		t.Errorf("handler order = %v", order)
	}
}

func TestManager_StartStop(t *testing.T) {
	m := process.NewManager(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	called := false
	m.RegisterShutdownHandler(func() { called = true })

	m.Start(ctx)
	m.Start(ctx)
	if !m.IsRunning() {
		t.Fatal("expected manager to be running")
	}

	m.Stop()
	m.Stop()
	if m.IsRunning() {
		t.Error("expected manager to be stopped")
	}
	if called {
		t.Error("stopping must not run shutdown handlers")
	}
}

func TestSafeGroup_RecoversPanic(t *testing.T) {
	g, _ := process.NewSafeGroup(context.Background(), logger.Nop())
	g.Go(func() error { panic("boom") })
	g.Go(func() error { return nil })

	err := g.Wait()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected panic error, got %v", err)
	}
}

func TestRecover(t *testing.T) {
	err := process.Recover(logger.Nop(), func() error { panic("stage exploded") })
	if err == nil || !strings.Contains(err.Error(), "stage exploded") {
		t.Errorf("expected recovered panic, got %v", err)
	}

	sentinel := errors.New("plain")
	if err := process.Recover(nil, func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected passthrough error, got %v", err)
	}
}
