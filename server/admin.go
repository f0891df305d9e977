package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 提供房间配置的读取与更新（热更新基本规则）
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(w, r)
	if !ok {
		return
	}

	type patch struct {
		MaxInputsPerTick   *int     `json:"maxInputsPerTick,omitempty"`
		SimulateDelayMinMs *int     `json:"simulateDelayMinMs,omitempty"`
		SimulateDelayMaxMs *int     `json:"simulateDelayMaxMs,omitempty"`
		SimulateDropProb   *float64 `json:"simulateDropProb,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, room.Settings())
	case http.MethodPost:
		var body patch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		s := room.UpdateSettings(func(s *RoomSettings) {
			if body.MaxInputsPerTick != nil {
				s.MaxInputsPerTick = *body.MaxInputsPerTick
			}
			if body.SimulateDelayMinMs != nil {
				s.SimulateDelayMinMs = *body.SimulateDelayMinMs
			}
			if body.SimulateDelayMaxMs != nil {
				s.SimulateDelayMaxMs = *body.SimulateDelayMaxMs
			}
			if body.SimulateDropProb != nil {
				s.SimulateDropProb = *body.SimulateDropProb
			}
		})
		Log.Infof("config updated: room=%s maxInputsPerTick=%d delay=[%d,%d] drop=%.2f",
			room.ID, s.MaxInputsPerTick, s.SimulateDelayMinMs, s.SimulateDelayMaxMs, s.SimulateDropProb)
		writeJSON(w, http.StatusOK, s)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":       room.ID,
		"frame":      room.Frame(),
		"checksum":   room.Checksum(),
		"queue_size": room.QueueSize(),
		"halted":     room.Halted(),
		"metrics":    room.Metrics().Snapshot(),
	})
}

func (m *RoomManager) roomFromQuery(w http.ResponseWriter, r *http.Request) (*Room, bool) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = defaultRoomID
	}
	room, ok := m.Room(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
	}
	return room, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
