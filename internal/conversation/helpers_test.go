package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	"github.com/wolfman30/dealer-ai-platform/internal/llm"
)

func testItems() []catalog.Item {
	return []catalog.Item{
		{
			Brand:     "Foton",
			Model:     "Tunland G9",
			Year:      2025,
			Price:     589900,
			Stock:     3,
			Colors:    []string{"blanco", "gris"},
			Financing: catalog.FinancingYes,
			PhotoURLs: []string{
				"https://cdn.example.com/g9/1.jpg",
				"https://cdn.example.com/g9/2.jpg",
				"https://cdn.example.com/g9/3.jpg",
				"https://cdn.example.com/g9/4.jpg",
				"https://cdn.example.com/g9/5.jpg",
			},
			TechSheetURL:    "https://cdn.example.com/g9/ficha.pdf",
			FinancingDocURL: "https://cdn.example.com/g9/corrida.pdf",
		},
		{
			Brand: "Foton",
			Model: "Tunland E5",
			Year:  2024,
			Price: 429900,
			PhotoURLs: []string{
				"https://cdn.example.com/e5/1.jpg",
				"https://cdn.example.com/e5/2.jpg",
			},
		},
		{
			Brand: "Foton",
			Model: "Miler",
			Year:  2024,
			Price: 515000,
		},
	}
}

func testCatalog() catalog.Snapshot {
	return catalog.Snapshot{Items: testItems(), LoadedAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
}

// scriptedLLM answers with canned replies in order and records requests.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Response{}, s.err
	}
	text := "¿En qué más te ayudo?"
	if len(s.replies) > 0 {
		text = s.replies[0]
		s.replies = s.replies[1:]
	}
	return llm.Response{Text: text, Provider: "scripted"}, nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// recordingMessenger captures replies and hands out sequential ids.
type recordingMessenger struct {
	mu      sync.Mutex
	replies []OutboundReply
	err     error
}

func (r *recordingMessenger) SendReply(ctx context.Context, reply OutboundReply) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.replies = append(r.replies, reply)
	return []string{"SM" + string(rune('a'+len(r.replies)-1))}, nil
}

func (r *recordingMessenger) sent() []OutboundReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutboundReply, len(r.replies))
	copy(out, r.replies)
	return out
}

func waitFor(cond func() bool, timeout time.Duration, t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
