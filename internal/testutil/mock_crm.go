// Package testutil provides testing utilities for the CRM backoffice client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockCRM is a configurable mock backoffice server serving paginated lists.
type MockCRM struct {
	server *httptest.Server

	mu        sync.Mutex
	lists     map[string]*MockList
	entities  map[string]json.RawMessage
	requests  map[string]int
	pageCalls map[string]map[int]int

	// Tracking
	LastRequestHeader http.Header
}

// MockList describes one paginated collection.
type MockList struct {
	// Items is the full collection in backend order.
	Items []json.RawMessage

	// MaxPageSize clamps the requested size (0 = no clamp).
	MaxPageSize int

	// OmitTotal drops paging.total from every response.
	OmitTotal bool

	// OmitContent answers with an envelope that has no content field.
	OmitContent bool

	// FailPages maps a page number to the number of 500 responses it gives
	// before succeeding (-1 = always fail).
	FailPages map[int]int

	// Delay is applied before every response.
	Delay time.Duration

	// Headers are added to every successful response.
	Headers map[string]string
}

// NewMockCRM creates a new mock CRM server.
func NewMockCRM() *MockCRM {
	mock := &MockCRM{
		lists:     make(map[string]*MockList),
		entities:  make(map[string]json.RawMessage),
		requests:  make(map[string]int),
		pageCalls: make(map[string]map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCRM) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCRM) Close() {
	m.server.Close()
}

// SetList registers a paginated collection at path.
func (m *MockCRM) SetList(path string, list *MockList) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[path] = list
}

// SetEntity registers a single-record response at path.
func (m *MockCRM) SetEntity(path string, body json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[path] = body
}

// Requests returns the number of requests received for path.
func (m *MockCRM) Requests(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// PageRequests returns the number of requests received for one page of path.
func (m *MockCRM) PageRequests(path string, page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageCalls[path][page]
}

// Reset clears all tracking counters.
func (m *MockCRM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.pageCalls = make(map[string]map[int]int)
	m.LastRequestHeader = nil
}

// Items builds n contact records {"id": "contact-i", "name": "Contact i"}.
func Items(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range n {
		items[i] = json.RawMessage(fmt.Sprintf(`{"id":"contact-%d","name":"Contact %d"}`, i+1, i+1))
	}
	return items
}

func (m *MockCRM) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	m.mu.Lock()
	m.requests[path]++
	if m.pageCalls[path] == nil {
		m.pageCalls[path] = make(map[int]int)
	}
	m.pageCalls[path][page]++
	call := m.pageCalls[path][page]
	m.LastRequestHeader = r.Header.Clone()
	list, isList := m.lists[path]
	entity, isEntity := m.entities[path]
	m.mu.Unlock()

	switch {
	case isEntity:
		w.Header().Set("Content-Type", "application/json")
		w.Write(entity)
	case isList:
		m.serveList(w, r, list, page, call)
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

func (m *MockCRM) serveList(w http.ResponseWriter, r *http.Request, list *MockList, page, call int) {
	if list.Delay > 0 {
		select {
		case <-time.After(list.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if fails, ok := list.FailPages[page]; ok && (fails < 0 || call <= fails) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	size := 10
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 {
		size = s
	}
	if list.MaxPageSize > 0 && size > list.MaxPageSize {
		size = list.MaxPageSize
	}

	start := min((page-1)*size, len(list.Items))
	end := min(start+size, len(list.Items))

	paging := map[string]any{
		"page":     page,
		"size":     size,
		"has_more": end < len(list.Items),
	}
	if !list.OmitTotal {
		paging["total"] = len(list.Items)
	}
	envelope := map[string]any{"paging": paging}
	if !list.OmitContent {
		envelope["content"] = list.Items[start:end]
	}

	for k, v := range list.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope)
}
