package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/infra/storage"
	"coffee-queue/internal/infra/storage/memory"
	"coffee-queue/internal/sync/feed"
	"coffee-queue/internal/sync/ordersync"
)

func newTestServer(t *testing.T) (*httptest.Server, *ordersync.OrderSync) {
	t.Helper()

	f := feed.NewMemoryFeed()
	store := memory.NewStore(func(ev domain.ChangeEvent) {
		f.Publish("orders", ev)
	})

	s := ordersync.New(ordersync.Config{
		Channel:        "orders",
		DebounceWindow: 10 * time.Millisecond,
		PollInterval:   time.Hour,
	}, f, store)
	s.Start(context.Background())
	t.Cleanup(s.Close)

	srv := NewServer(s, nil, 0)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return ts, s
}

func newOrder(guest, drink string) storage.NewOrder {
	return storage.NewOrder{GuestName: guest, Drink: drink}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestPlaceAndListOrders(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/orders", map[string]any{
		"guest_name": "ada",
		"drink":      "flat white",
		"options":    []string{"oat milk"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" || created.QueueNumber != 1 {
		t.Errorf("unexpected created order: %+v", created)
	}

	listResp, err := http.Get(ts.URL + "/orders")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defer listResp.Body.Close()

	var orders []domain.Order
	if err := json.NewDecoder(listResp.Body).Decode(&orders); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != created.ID {
		t.Errorf("expected the placed order in the list, got %+v", orders)
	}
}

func TestPlaceOrder_ValidationError(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/orders", map[string]any{"drink": "latte"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestOrderStatusEndpoint(t *testing.T) {
	ts, s := newTestServer(t)

	s.PlaceOrder(context.Background(), newOrder("a", "latte"))
	second, _ := s.PlaceOrder(context.Background(), newOrder("b", "mocha"))

	resp, err := http.Get(ts.URL + "/orders/" + second.ID + "/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var qs domain.QueueStatus
	if err := json.NewDecoder(resp.Body).Decode(&qs); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if qs.Position != 1 {
		t.Errorf("expected position 1, got %d", qs.Position)
	}
	if qs.IsReady {
		t.Error("expected order not ready")
	}
}

func TestOrderStatus_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/orders/nope/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateStatus(t *testing.T) {
	ts, s := newTestServer(t)

	created, _ := s.PlaceOrder(context.Background(), newOrder("ada", "espresso"))

	resp := postJSON(t, ts.URL+"/orders/"+created.ID+"/status", map[string]string{"status": "completed"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// Terminal orders reject further transitions.
	again := postJSON(t, ts.URL+"/orders/"+created.ID+"/status", map[string]string{"status": "cancelled"})
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", again.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
