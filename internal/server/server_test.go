package server

import (
	"context"
	"encoding/json"
	"image"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"clipstitch/internal/config"
	"clipstitch/internal/types"
)

func TestHandleConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 9999
	cfg.Source = config.SourceSimulator
	srv := &Server{cfg: cfg}

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if payload["source"] != "simulator" {
		t.Fatalf("unexpected source: %v", payload["source"])
	}
	if payload["preview_width"].(float64) != 80 {
		t.Fatalf("unexpected preview_width: %v", payload["preview_width"])
	}
	if payload["port"].(float64) != 9999 {
		t.Fatalf("unexpected port: %v", payload["port"])
	}
}

func TestHandleStatusCountsClients(t *testing.T) {
	srv := newServer(config.Default(), func() map[string]any {
		return map[string]any{"stage": "acquire_first"}
	}, nil)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["stage"] != "acquire_first" {
		t.Fatalf("unexpected stage: %v", payload["stage"])
	}
	if payload["ws_clients"].(float64) != 0 {
		t.Fatalf("unexpected ws_clients: %v", payload["ws_clients"])
	}
}

func TestWebsocketReceivesSnapshotAndBroadcast(t *testing.T) {
	feed := NewFeed("run-1", 4)
	feed.Stage("first", "first image", image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	<-feed.Messages() // consumed before the client connects

	srv := newServer(config.Default(), nil, feed.Latest)
	handler, err := srv.handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.broadcast(ctx, feed.Messages())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var cfgMsg map[string]any
	if err := conn.ReadJSON(&cfgMsg); err != nil {
		t.Fatalf("read config: %v", err)
	}
	if cfgMsg["type"] != "config" {
		t.Fatalf("expected config first, got %v", cfgMsg["type"])
	}

	var snapshot types.StageEvent
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Stage != "first" || snapshot.RunID != "run-1" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	feed.Stage("result", "stitched", image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	var event types.StageEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if event.Stage != "result" || event.Width != 4 || event.PNG == "" {
		t.Fatalf("unexpected broadcast %+v", event)
	}
}
