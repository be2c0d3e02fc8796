package uploader

import "sync"

// Preview is the in-memory stand-in for a browser object URL: a handle to
// the staged file's bytes that must be released when its thumbnail is
// removed or the dialog closes.
type Preview struct {
	mu       sync.Mutex
	name     string
	data     []byte
	released bool
}

func newPreview(f File) *Preview {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Preview{name: f.Name, data: data}
}

func (p *Preview) Name() string {
	return p.name
}

// Bytes returns the preview content, or nil once released.
func (p *Preview) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

func (p *Preview) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Release drops the preview content. Releasing twice is a no-op.
func (p *Preview) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
	p.released = true
}
