// Package session tracks which trace is currently loaded. A session is a
// two-state machine, empty or loaded, and the only shared mutable state is
// the identity of the active trace. The store itself is immutable and its
// lifetime is reference counted, so readers holding a Trace keep working
// unlocked even while a replacement loads and unmaps nothing out from under
// them.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ziadomalik/ramwiz/internal/trace"
)

// Metadata is the viewer-facing summary of a loaded trace.
type Metadata struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	TotalEvents uint64 `json:"totalEvents"`
	FileSize    uint64 `json:"fileSize"`
	MinClk      int64  `json:"minClk"`
	MaxClk      int64  `json:"maxClk"`
}

// Trace is one fully loaded trace: the store plus its summary. The manager
// holds one reference while the trace is active and Current hands out one
// per reader; the mapping is released only when the count drains, so a
// reader's EntrySlice stays valid across a swap or unload.
type Trace struct {
	Store *trace.Store
	Meta  Metadata

	refs atomic.Int64
}

// Release drops one reference and closes the store once the last one is
// gone. Every Current call and every detached trace handed back by Load or
// Unload must be balanced by exactly one Release.
func (t *Trace) Release() {
	if t == nil {
		return
	}
	if t.refs.Add(-1) == 0 {
		_ = t.Store.Close()
	}
}

// Manager guards the active trace identity. The lock is held only for the
// pointer swap, never across file I/O or parsing: a failed load leaves the
// previous trace untouched and concurrent readers of it unblocked.
type Manager struct {
	mu      sync.Mutex
	current *Trace
}

func NewManager() *Manager {
	return &Manager{}
}

// Load opens and fully validates the trace at path, then swaps it in as the
// active trace. The replaced trace is returned detached, carrying the
// manager's reference: the caller must Release it, and the mapping stays
// alive until in-flight readers drop theirs. On error the active trace is
// unchanged.
func (m *Manager) Load(path string) (*Trace, *Trace, error) {
	st, err := trace.Open(path)
	if err != nil {
		return nil, nil, err
	}

	meta := Metadata{
		ID:          uuid.NewString(),
		Path:        path,
		TotalEvents: st.NumEntries(),
		FileSize:    st.Size(),
	}
	if n := st.NumEntries(); n > 0 {
		first, err := st.LoadEntry(0)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		last, err := st.LoadEntry(n - 1)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		meta.MinClk = first.Clk
		meta.MaxClk = last.Clk
	}

	loaded := &Trace{Store: st, Meta: meta}
	loaded.refs.Store(1)

	m.mu.Lock()
	prev := m.current
	m.current = loaded
	m.mu.Unlock()

	return loaded, prev, nil
}

// Current returns the active trace with a reference held for the caller, or
// nil if the session is empty. The caller must Release the trace once done
// reading from it. Taking the reference under the same lock as the swap
// guarantees a reader never acquires a trace whose count already drained.
func (m *Manager) Current() *Trace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.refs.Add(1)
	}
	return m.current
}

// Unload detaches and returns the active trace, leaving the session empty.
// The returned trace carries the manager's reference; the caller must
// Release it.
func (m *Manager) Unload() *Trace {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	return prev
}
