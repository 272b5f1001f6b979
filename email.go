package mailAuth

import (
	"context"
	"sync"
)

// NoOpSender discards every message. Useful while wiring an engine before
// the real transport exists.
type NoOpSender struct{}

func (NoOpSender) Send(context.Context, EmailKind, string, EmailData) error {
	return nil
}

// SentEmail is one message captured by [ChannelSender].
type SentEmail struct {
	Kind EmailKind
	To   string
	Data EmailData
}

// ChannelSender forwards messages to a buffered channel, mirroring
// [ChannelSink] on the audit side. Mainly for tests and in-process
// consumers that own delivery themselves.
type ChannelSender struct {
	messages chan SentEmail

	mu   sync.Mutex
	fail error
}

func NewChannelSender(buffer int) *ChannelSender {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSender{
		messages: make(chan SentEmail, buffer),
	}
}

// FailWith makes subsequent sends return err; nil restores delivery.
func (s *ChannelSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *ChannelSender) Send(ctx context.Context, kind EmailKind, to string, data EmailData) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail
	}

	select {
	case s.messages <- SentEmail{Kind: kind, To: to, Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSender) Messages() <-chan SentEmail {
	return s.messages
}
