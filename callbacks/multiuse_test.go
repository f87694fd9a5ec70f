package callbacks

import "testing"

// proxy type used across these tests; stands in for a loop core
// trampoline signature.
type testProxy func(userdata uintptr)

func TestMultiUseZeroValueIsUnregistered(t *testing.T) {
	var m MultiUse[func(), testProxy]

	if m.IsSet() {
		t.Error("zero MultiUse reports a registered closure")
	}

	proxy, userdata := m.CapiParams(func(uintptr) {})
	if proxy != nil {
		t.Error("unregistered CapiParams returned a trampoline")
	}
	if userdata != 0 {
		t.Error("unregistered CapiParams returned nonzero userdata")
	}
}

func TestMultiUseCapiParams(t *testing.T) {
	base := Live()

	fired := 0
	m := NewMultiUse[func(), testProxy](func() { fired++ })
	if !m.IsSet() {
		t.Fatal("registered MultiUse reports no closure")
	}

	trampoline := testProxy(func(userdata uintptr) {
		Get[func()](userdata)()
	})
	proxy, userdata := m.CapiParams(trampoline)
	if proxy == nil || userdata == 0 {
		t.Fatal("registered CapiParams returned an incomplete pair")
	}

	// Simulate the core invoking the trampoline repeatedly.
	proxy(userdata)
	proxy(userdata)
	proxy(userdata)
	if fired != 3 {
		t.Errorf("closure fired %d times, want 3", fired)
	}

	m.Drop()
	if Live() != base {
		t.Errorf("Live() = %d after drop, want %d", Live(), base)
	}
}

func TestMultiUseDropIdempotent(t *testing.T) {
	m := NewMultiUse[func(), testProxy](func() {})
	m.Drop()
	m.Drop() // second drop must be a no-op, not a double free
	if m.IsSet() {
		t.Error("dropped MultiUse still reports a closure")
	}
}

func TestMultiUseReplaceFreesExactlyOnce(t *testing.T) {
	base := Live()

	const n = 5
	m := NewMultiUse[func(), testProxy](func() {})
	for i := 1; i < n; i++ {
		// Each replacement must free the prior closure: the registry
		// never holds more than one box for this registration.
		m.Replace(NewMultiUse[func(), testProxy](func() {}))
		if got := Live(); got != base+1 {
			t.Fatalf("Live() = %d after replacement %d, want %d", got, i, base+1)
		}
	}

	m.Replace(MultiUse[func(), testProxy]{}) // final state: unregistered
	if got := Live(); got != base {
		t.Errorf("Live() = %d after clearing, want %d", got, base)
	}
}

func TestUnwrap(t *testing.T) {
	proxy, userdata := Unwrap[testProxy](nil)
	if proxy != nil || userdata != 0 {
		t.Error("Unwrap(nil) must yield (nil, 0)")
	}

	p := &Params[testProxy]{Proxy: func(uintptr) {}, Userdata: 42}
	proxy, userdata = Unwrap(p)
	if proxy == nil || userdata != 42 {
		t.Error("Unwrap passed through a present pair incorrectly")
	}
}
