package emailsvc

import (
	"sync"

	"github.com/mathhub/factolearn/core"
)

// Mock renders & records the messages synchronously, for tests.
type Mock struct {
	conf *core.Config

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*Mock)(nil)

func NewMock(conf *core.Config) *Mock {
	return &Mock{conf: conf}
}

func (m *Mock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = deliver(m.conf, m, msg)
	}
}

func (m *Mock) send(msg core.EmailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// SentMessages returns the messages sent so far.
func (m *Mock) SentMessages() []core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.EmailMessage(nil), m.sent...)
}

func (m *Mock) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}
