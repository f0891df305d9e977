package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *RoomManager {
	t.Helper()
	rm := NewRoomManager(DefaultRoomConfig())
	rm.GetOrCreateRoom(defaultRoomID)
	t.Cleanup(func() { _ = rm.Shutdown() })
	return rm
}

func TestAdminConfigGetAndPost(t *testing.T) {
	rm := newTestManager(t)

	rec := httptest.NewRecorder()
	rm.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config?room=room-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got RoomSettings
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MaxInputsPerTick != DefaultRoomConfig().Settings.MaxInputsPerTick {
		t.Fatalf("maxInputsPerTick = %d", got.MaxInputsPerTick)
	}

	body := strings.NewReader(`{"maxInputsPerTick":2,"simulateDropProb":3}`)
	rec = httptest.NewRecorder()
	rm.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d", rec.Code)
	}
	room, _ := rm.Room(defaultRoomID)
	s := room.Settings()
	if s.MaxInputsPerTick != 2 || s.SimulateDropProb != 1 {
		t.Fatalf("settings not applied or not clamped: %+v", s)
	}
}

func TestAdminConfigErrors(t *testing.T) {
	rm := newTestManager(t)

	rec := httptest.NewRecorder()
	rm.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config?room=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown room status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	rm.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	rm.HandleAdminConfig(rec, httptest.NewRequest(http.MethodDelete, "/admin/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rm := newTestManager(t)

	rec := httptest.NewRecorder()
	rm.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics?room=room-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"room", "frame", "checksum", "queue_size", "halted", "metrics"} {
		if _, ok := payload[k]; !ok {
			t.Fatalf("missing %q in %v", k, payload)
		}
	}
}

func TestManagerReusesRooms(t *testing.T) {
	rm := newTestManager(t)
	a := rm.GetOrCreateRoom("x")
	if b := rm.GetOrCreateRoom("x"); a != b {
		t.Fatalf("room recreated")
	}
	if _, ok := rm.Room("y"); ok {
		t.Fatalf("Room created a room")
	}
	if err := rm.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := rm.Room("x"); ok {
		t.Fatalf("room survived shutdown")
	}
}

func TestManagerDropsHaltedRoom(t *testing.T) {
	rm := newTestManager(t)
	room := rm.GetOrCreateRoom("x")
	room.halt(errors.New("boom"))
	if _, ok := rm.Room("x"); ok {
		t.Fatalf("halted room still registered")
	}
	if again := rm.GetOrCreateRoom("x"); again == room || again.Halted() {
		t.Fatalf("halted room reused")
	}
}
