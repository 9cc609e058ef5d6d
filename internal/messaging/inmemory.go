package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// InMemoryService implements Service without an external provider. The HTTP
// API is the inbound channel: handlers call InjectResponse for each posted
// message, and sent messages are buffered for retrieval.
type InMemoryService struct {
	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	sent      []models.Reply
	stopped   bool
}

// NewInMemoryService creates an InMemoryService.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient trims the recipient and requires it to be
// non-empty. In-memory recipients are opaque ids, not phone numbers.
func (s *InMemoryService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical := strings.TrimSpace(recipient)
	if canonical == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return canonical, nil
}

// Start is a no-op.
func (s *InMemoryService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *InMemoryService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

// SendMessage buffers the message and emits a sent receipt.
func (s *InMemoryService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrServiceStopped
	}
	s.sent = append(s.sent, models.Reply{To: canonicalTo, Text: body})
	s.mu.Unlock()

	select {
	case s.receipts <- models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()}:
	default:
		slog.Warn("InMemoryService receipts channel full, dropping receipt", "to", canonicalTo)
	}
	return nil
}

// InjectResponse feeds an inbound message into the Responses channel, as if it
// had arrived from a provider.
func (s *InMemoryService) InjectResponse(response models.Response) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	select {
	case s.responses <- response:
		return nil
	case <-time.After(DefaultChannelTimeout):
		return fmt.Errorf("responses channel blocked")
	}
}

// SentMessages returns a copy of every message sent through the service.
func (s *InMemoryService) SentMessages() []models.Reply {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Reply, len(s.sent))
	copy(out, s.sent)
	return out
}

// Receipts returns the channel for sent message receipts.
func (s *InMemoryService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel for incoming messages.
func (s *InMemoryService) Responses() <-chan models.Response {
	return s.responses
}
