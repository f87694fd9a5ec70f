package pulseloop

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// gid returns the current goroutine's id, parsed from the runtime stack
// header ("goroutine N [running]:"). Used only for lock ownership and
// InThread checks; never for scheduling decisions.
func gid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// recursiveMutex is a goroutine-reentrant lock, matching the recursive
// lock semantics the threaded loop exposes: the same goroutine may lock
// it multiple times and must unlock it the same number of times.
type recursiveMutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

func newRecursiveMutex() *recursiveMutex {
	m := &recursiveMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *recursiveMutex) Lock() {
	id := gid()
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.depth > 0 && m.owner != id {
		m.cond.Wait()
	}
	m.owner = id
	m.depth++
}

func (m *recursiveMutex) Unlock() {
	id := gid()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 || m.owner != id {
		panic("pulseloop: unlock of lock not held by this goroutine")
	}
	m.depth--
	if m.depth == 0 {
		m.owner = 0
		m.cond.Signal()
	}
}

// held reports whether the calling goroutine currently holds the lock.
func (m *recursiveMutex) held() bool {
	id := gid()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0 && m.owner == id
}
