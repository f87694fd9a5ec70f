package pulseloop

import (
	"testing"

	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/loopcore"
)

func TestOperationStrongFreeReleasesReference(t *testing.T) {
	core := loopcore.NewOperation()
	core.Ref() // keep the handle inspectable after the wrapper drops it
	defer core.Unref()

	o := OperationFromCore(core)
	if core.Refs() != 2 {
		t.Fatalf("refs after wrap = %d, want 2", core.Refs())
	}

	o.Free()
	if core.Refs() != 1 {
		t.Errorf("refs after Free = %d, want 1", core.Refs())
	}

	// Idempotent: a second Free must not release again.
	o.Free()
	if core.Refs() != 1 {
		t.Errorf("refs after double Free = %d, want 1", core.Refs())
	}
}

func TestOperationWeakFreeKeepsReference(t *testing.T) {
	core := loopcore.NewOperation()
	defer core.Unref()

	o := OperationFromCoreWeak(core)
	o.Free()
	if core.Refs() != 1 {
		t.Errorf("refs after weak Free = %d, want 1", core.Refs())
	}
}

func TestOperationFromNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil operation handle")
		}
	}()
	OperationFromCore(nil)
}

func TestOperationCancelSticks(t *testing.T) {
	core := loopcore.NewOperation()
	o := OperationFromCore(core)
	defer o.Free()

	if o.State() != OperationRunning {
		t.Fatalf("initial state = %v, want %v", o.State(), OperationRunning)
	}

	o.Cancel()
	if o.State() != OperationCancelled {
		t.Fatalf("state after cancel = %v, want %v", o.State(), OperationCancelled)
	}

	// A late completion must not overwrite the cancellation.
	core.Done()
	if o.State() != OperationCancelled {
		t.Errorf("state after late Done = %v, want %v", o.State(), OperationCancelled)
	}
}

func TestOperationStateCallback(t *testing.T) {
	core := loopcore.NewOperation()
	o := OperationFromCore(core)
	defer o.Free()

	fired := 0
	var seen OperationState
	o.SetStateCallback(func() {
		fired++
		seen = o.State()
	})

	core.Done()
	if fired != 1 {
		t.Fatalf("state callback fired %d times, want 1", fired)
	}
	if seen != OperationDone {
		t.Errorf("state inside callback = %v, want %v", seen, OperationDone)
	}
}

func TestOperationStateCallbackReplaceFreesPrevious(t *testing.T) {
	core := loopcore.NewOperation()
	o := OperationFromCore(core)
	base := callbacks.Live()

	for i := 0; i < 5; i++ {
		o.SetStateCallback(func() {})
		if got := callbacks.Live(); got != base+1 {
			t.Fatalf("live closures after replace %d = %d, want %d", i, got, base+1)
		}
	}

	o.SetStateCallback(nil)
	if got := callbacks.Live(); got != base {
		t.Fatalf("live closures after clearing = %d, want %d", got, base)
	}

	o.Free()
	if got := callbacks.Live(); got != base {
		t.Errorf("live closures after Free = %d, want %d", got, base)
	}
}
