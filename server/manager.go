package server

import (
	"sync"

	"go.uber.org/multierr"
)

const defaultRoomID = "room-1"

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	cfg   RoomConfig
}

// NewRoomManager 以 cfg 作为之后新建房间的配置
func NewRoomManager(cfg RoomConfig) *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room), cfg: cfg}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.rooms[id]; !ok {
		r = NewRoom(id, m.cfg)
		r.onHalt = m.remove
		m.rooms[id] = r
		r.StartTicker()
		Log.Infof("room created: room=%s tickRate=%d", id, r.queue.TickRate())
	}
	return r
}

// Room 查找已存在的房间
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// remove 停机的房间从管理器移除；之后同名请求会创建新房间
func (m *RoomManager) remove(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.ID]; ok && cur == r {
		delete(m.rooms, r.ID)
		Log.Infof("room removed: room=%s", r.ID)
	}
}

// Shutdown 停止全部房间并关闭连接
func (m *RoomManager) Shutdown() error {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	var err error
	for _, r := range rooms {
		err = multierr.Append(err, r.Close())
	}
	return err
}
