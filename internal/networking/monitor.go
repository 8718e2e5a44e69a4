package networking

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/rs/zerolog/log"
)

// subscriberBuffer is in chunks, a slow listener loses chunks rather than stalling the recorder.
const subscriberBuffer = 64

// Monitor fans live delta chunks out to websocket listeners as S16LE binary messages.
// Publish has the recorder.ChunkListener signature.
type Monitor struct {
	mu          sync.Mutex
	subscribers map[*monitorSubscriber]struct{}
	closed      bool
}

func NewMonitor() *Monitor {
	return &Monitor{
		subscribers: make(map[*monitorSubscriber]struct{}),
	}
}

func (m *Monitor) HandlerFunc() http.HandlerFunc {
	return NewWebsocketHandlerFunc(websocket.BinaryMessage, m.subscribe)
}

func (m *Monitor) subscribe() WebsocketMessageHandler {
	s := &monitorSubscriber{
		monitor:   m,
		readChan:  make(chan []byte, 1),
		writeChan: make(chan []byte, subscriberBuffer),
	}
	m.mu.Lock()
	if m.closed {
		close(s.writeChan)
	} else {
		m.subscribers[s] = struct{}{}
	}
	m.mu.Unlock()

	go s.readUntilClosed()
	return s
}

func (m *Monitor) unsubscribe(s *monitorSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[s]; ok {
		delete(m.subscribers, s)
		close(s.writeChan)
	}
}

func (m *Monitor) Publish(chunk []int16) {
	if len(chunk) == 0 {
		return
	}
	msg := audio_utils.Int16SliceToTwoByteData(chunk)

	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subscribers {
		select {
		case s.writeChan <- msg:
		default:
			log.Trace().Int("sample_count", len(chunk)).Msg("monitor subscriber too slow, dropping chunk")
		}
	}
}

func (m *Monitor) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Close disconnects every listener gracefully, later connections are closed right away.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for s := range m.subscribers {
		delete(m.subscribers, s)
		close(s.writeChan)
	}
}

type monitorSubscriber struct {
	monitor   *Monitor
	readChan  chan []byte
	writeChan chan []byte
}

func (s *monitorSubscriber) GetReader() chan<- []byte {
	return s.readChan
}

func (s *monitorSubscriber) GetWriter() <-chan []byte {
	return s.writeChan
}

// readUntilClosed ignores whatever listeners send, it only tracks the connection lifetime.
func (s *monitorSubscriber) readUntilClosed() {
	for range s.readChan {
	}
	s.monitor.unsubscribe(s)
}
