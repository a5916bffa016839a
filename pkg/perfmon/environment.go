package perfmon

import (
	"sync"
)

// Environment supplies the context stamped on every sample. Methods may fail
// or panic; the recorder then omits the field.
type Environment interface {
	URL() string
	UserAgent() string
	Viewport() (Viewport, error)
	Connection() (Connection, error)
}

// PageContext is a partial update of a HostEnvironment. Empty fields leave the
// current value untouched.
type PageContext struct {
	URL        string      `json:"url,omitempty"`
	UserAgent  string      `json:"userAgent,omitempty"`
	Viewport   *Viewport   `json:"viewport,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

// HostEnvironment is an Environment updated by whatever hosts the page, for
// example the ingest endpoint forwarding what the browser reports.
type HostEnvironment struct {
	mu         sync.RWMutex
	url        string
	userAgent  string
	viewport   *Viewport
	connection *Connection
}

var _ Environment = (*HostEnvironment)(nil)

func NewHostEnvironment(url, userAgent string) *HostEnvironment {
	return &HostEnvironment{url: url, userAgent: userAgent}
}

func (e *HostEnvironment) Update(page PageContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if page.URL != "" {
		e.url = page.URL
	}
	if page.UserAgent != "" {
		e.userAgent = page.UserAgent
	}
	if page.Viewport != nil {
		vp := *page.Viewport
		e.viewport = &vp
	}
	if page.Connection != nil {
		conn := *page.Connection
		e.connection = &conn
	}
}

func (e *HostEnvironment) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

func (e *HostEnvironment) UserAgent() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userAgent
}

func (e *HostEnvironment) Viewport() (Viewport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.viewport == nil {
		return Viewport{}, ErrUnavailable
	}
	return *e.viewport, nil
}

func (e *HostEnvironment) Connection() (Connection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.connection == nil {
		return Connection{}, ErrUnavailable
	}
	return *e.connection, nil
}
