package actorkit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wippy-systems/relay/actorkit"
)

func TestMailbox_SendReceive(t *testing.T) {
	ctx := context.Background()
	mb := actorkit.NewMailbox[string](ctx, 1)

	if err := mb.Send(ctx, "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, err := mb.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Receive() = %q, want %q", got, "hello")
	}
}

func TestMailbox_TrySend_FullBufferDrops(t *testing.T) {
	ctx := context.Background()
	mb := actorkit.NewMailbox[int](ctx, 1)

	if !mb.TrySend(1) {
		t.Fatal("first TrySend should succeed")
	}
	if mb.TrySend(2) {
		t.Fatal("second TrySend on a full buffer should report false")
	}
	if mb.Len() != 1 {
		t.Errorf("Len() = %d, want 1", mb.Len())
	}
}

func TestMailbox_Send_BlocksUntilCallerCtxDone(t *testing.T) {
	ctx := context.Background()
	mb := actorkit.NewMailbox[int](ctx, 0)

	sendCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := mb.Send(sendCtx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestMailbox_ClosedRejectsSend(t *testing.T) {
	ctx := context.Background()
	mb := actorkit.NewMailbox[int](ctx, 1)
	mb.Close()

	if err := mb.Send(ctx, 1); !errors.Is(err, actorkit.ErrMailboxClosed) {
		t.Errorf("Send() after Close() error = %v, want ErrMailboxClosed", err)
	}
	if mb.TrySend(1) {
		t.Error("TrySend() after Close() should report false")
	}
}

func TestSpawn_CleanExit(t *testing.T) {
	handle := actorkit.Spawn(context.Background(), "test", func(ctx context.Context, self actorkit.Ref) error {
		return nil
	})

	exit, ok := actorkit.AwaitExit(handle.ExitCh, time.Second)
	if !ok {
		t.Fatal("actor did not exit within grace")
	}
	if !exit.Clean {
		t.Error("Clean = false, want true for nil-returning actor")
	}
	if exit.Ref != handle.Ref {
		t.Error("Exit.Ref does not match Handle.Ref")
	}
}

func TestSpawn_CrashExit(t *testing.T) {
	boom := errors.New("boom")
	handle := actorkit.Spawn(context.Background(), "test", func(ctx context.Context, self actorkit.Ref) error {
		return boom
	})

	exit, ok := actorkit.AwaitExit(handle.ExitCh, time.Second)
	if !ok {
		t.Fatal("actor did not exit within grace")
	}
	if exit.Clean {
		t.Error("Clean = true, want false for an actor returning a non-nil, non-cancellation error")
	}
	if !errors.Is(exit.Err, boom) {
		t.Errorf("Err = %v, want %v", exit.Err, boom)
	}
}

func TestSpawn_CancelIsCleanExit(t *testing.T) {
	handle := actorkit.Spawn(context.Background(), "test", func(ctx context.Context, self actorkit.Ref) error {
		<-ctx.Done()
		return ctx.Err()
	})

	handle.Cancel()

	exit, ok := actorkit.AwaitExit(handle.ExitCh, time.Second)
	if !ok {
		t.Fatal("actor did not exit within grace")
	}
	if !exit.Clean {
		t.Error("Clean = false, want true for an actor unwinding via its own canceled context")
	}
}

func TestSpawn_ForcedAbandonAfterGrace(t *testing.T) {
	started := make(chan struct{})
	handle := actorkit.Spawn(context.Background(), "stuck", func(ctx context.Context, self actorkit.Ref) error {
		close(started)
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		return ctx.Err()
	})
	<-started
	handle.Cancel()

	_, ok := actorkit.AwaitExit(handle.ExitCh, 10*time.Millisecond)
	if ok {
		t.Fatal("expected AwaitExit to time out before the actor's slow unwind completes")
	}

	// The actor does eventually exit; drain it so the goroutine test leak
	// checker (if any) doesn't flag it.
	if _, ok := actorkit.AwaitExit(handle.ExitCh, time.Second); !ok {
		t.Fatal("actor never exited")
	}
}

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	reg := actorkit.NewRegistry()
	ref := actorkit.NewRef("central")

	if err := reg.Register("wippy.central", ref); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := reg.Lookup("wippy.central")
	if !ok || got != ref {
		t.Fatalf("Lookup() = %v, %v, want %v, true", got, ok, ref)
	}

	other := actorkit.NewRef("central-2")
	if err := reg.Register("wippy.central", other); err == nil {
		t.Fatal("Register() with a conflicting Ref should fail")
	}

	reg.Unregister("wippy.central", other) // stale ref, should be a no-op
	if _, ok := reg.Lookup("wippy.central"); !ok {
		t.Fatal("Unregister() with a stale Ref should not remove the current registration")
	}

	reg.Unregister("wippy.central", ref)
	if _, ok := reg.Lookup("wippy.central"); ok {
		t.Fatal("Unregister() with the current Ref should remove the registration")
	}
}
