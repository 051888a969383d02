// Package notify carries user-visible messages (toasts) from controllers to
// the response that renders them.
package notify

import "sync"

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Collector buffers notifications for the current request.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Success(message string) { c.add(LevelSuccess, message) }
func (c *Collector) Error(message string)   { c.add(LevelError, message) }
func (c *Collector) Info(message string)    { c.add(LevelInfo, message) }

func (c *Collector) add(level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, Notification{Level: level, Message: message})
}

// Drain returns buffered notifications and empties the buffer.
func (c *Collector) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

type discard struct{}

func (discard) Success(string) {}
func (discard) Error(string)   {}
func (discard) Info(string)    {}

func Discard() Notifier {
	return discard{}
}
