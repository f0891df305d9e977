package server

import (
	"errors"
	"fmt"
	"strings"

	"arenasim/moves"
)

var (
	errNotMove      = errors.New("not a move message")
	errBadDirection = errors.New("bad direction")
)

// InputMessage 入站输入的 JSON 结构（WebSocket 文本消息）
// 示例：{"type":"move","tick":12,"seq":3,"moving":true,"direction":"up_left","shooting":false}
// tick 省略时由房间按当前帧盖章
type InputMessage struct {
	Type      string `json:"type"`
	Tick      int64  `json:"tick,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
	Moving    bool   `json:"moving"`
	Direction string `json:"direction"`
	Shooting  bool   `json:"shooting,omitempty"`
}

// ToUpdate 转换为移动记录；frame 为 tick 缺省时使用的帧号
func (m InputMessage) ToUpdate(playerID PlayerID, frame int64) (moves.PlayerMoveUpdate, error) {
	if strings.ToLower(m.Type) != "move" {
		return moves.PlayerMoveUpdate{}, errNotMove
	}
	dir := moves.DirUp
	if m.Direction != "" {
		d, ok := moves.ParseDirection(m.Direction)
		if !ok {
			return moves.PlayerMoveUpdate{}, fmt.Errorf("%w: %q", errBadDirection, m.Direction)
		}
		dir = d
	} else if m.Moving {
		return moves.PlayerMoveUpdate{}, fmt.Errorf("%w: missing", errBadDirection)
	}
	tick := m.Tick
	if tick <= 0 {
		tick = frame
	}
	return moves.NewPlayerMoveUpdate(string(playerID), tick, m.Seq, m.Moving, dir, m.Shooting), nil
}
