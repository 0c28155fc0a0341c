package email

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
)

// LogSender writes messages to the structured log. Development only: the
// log line contains the login link.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.LogInfoWithFields("email", "Email message", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	return nil
}

// WriterSender prints messages to w, typically os.Stdout.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "To: %s\nSubject: %s\n\n%s\n", msg.To, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// MemorySender records messages instead of sending them.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, msg)
	log.LogDebugWithFields("email", "Message recorded", map[string]any{
		"domain": emailutil.ExtractDomain(msg.To),
	})
	return nil
}

// Messages returns a copy of everything sent so far.
func (s *MemorySender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}
