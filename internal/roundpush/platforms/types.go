package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the platform-neutral announcement. A non-empty PanelKey asks adapters
// that support it to edit one message in place instead of posting a new one.
type Message struct {
	PanelKey    string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}
