package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Encoding 出站状态消息的编码方式
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	enc  Encoding
	mu   sync.Mutex
	send chan []byte
}

func NewClientConn(ws *websocket.Conn, enc Encoding) *ClientConn {
	if enc != EncodingMsgpack {
		enc = EncodingJSON
	}
	return &ClientConn{
		ws:   ws,
		enc:  enc,
		send: make(chan []byte, 64),
	}
}

func (c *ClientConn) Encoding() Encoding { return c.enc }

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）；返回是否入队
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性丢弃，防止阻塞 Tick
		return false
	}
}

// Close 关闭底层连接与发送队列（可重复调用）
func (c *ClientConn) Close() error {
	c.mu.Lock()
	if c.send != nil {
		// 关闭发送通道以结束写协程
		close(c.send)
		c.send = nil
	}
	c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	if err := c.ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		return
	}
	msgType := websocket.TextMessage
	if c.enc == EncodingMsgpack {
		msgType = websocket.BinaryMessage
	}
	for msg := range send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(msgType, msg); err != nil {
			return
		}
	}
}

// readPump 读取客户端输入，转换为移动意图写入房间输入队列
func (c *ClientConn) readPump(room *Room, playerID PlayerID) {
	defer c.ws.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该玩家
	defer room.RequestLeave(playerID, c)
	c.ws.SetReadLimit(1 << 20) // 1MB
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("read error: room=%s player=%s err=%v", room.ID, playerID, err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		var im InputMessage
		if err := json.Unmarshal(payload, &im); err != nil {
			room.metrics.IncInvalid()
			continue
		}
		if err := room.OnInput(playerID, im); err != nil {
			Log.Debugf("input dropped: room=%s player=%s err=%v", room.ID, playerID, err)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：?room=room-1&player=alice&enc=json|msgpack
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = defaultRoomID
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "missing player query", http.StatusBadRequest)
		return
	}

	room := m.GetOrCreateRoom(roomID)
	if room.Halted() {
		http.Error(w, "room halted", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, Encoding(strings.ToLower(r.URL.Query().Get("enc"))))
	room.JoinPlayer(PlayerID(playerID), client)

	go client.writePump()
	go client.readPump(room, PlayerID(playerID))
}
