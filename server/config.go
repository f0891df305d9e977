package server

import (
	"arenasim/game"
	"arenasim/moves"
)

// RoomConfig 房间创建时的固定参数
type RoomConfig struct {
	TickRate    int // 每秒 Tick 数
	BufferDepth int // 每个玩家最多缓存的输入条数
	Sim         game.Config
	Settings    RoomSettings
}

// RoomSettings 可通过 /admin/config 热更新的规则
type RoomSettings struct {
	MaxInputsPerTick   int     `json:"maxInputsPerTick"`
	SimulateDelayMinMs int     `json:"simulateDelayMinMs"`
	SimulateDelayMaxMs int     `json:"simulateDelayMaxMs"`
	SimulateDropProb   float64 `json:"simulateDropProb"`
}

// DefaultRoomConfig 30 TPS，每玩家缓存 10 条，每 Tick 最多接受 4 条输入
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TickRate:    moves.DefaultTickRate,
		BufferDepth: moves.DefaultDepth,
		Settings: RoomSettings{
			MaxInputsPerTick: 4,
		},
	}
}

func (s RoomSettings) normalized() RoomSettings {
	if s.MaxInputsPerTick < 0 {
		s.MaxInputsPerTick = 0
	}
	if s.SimulateDelayMinMs < 0 {
		s.SimulateDelayMinMs = 0
	}
	if s.SimulateDelayMaxMs < s.SimulateDelayMinMs {
		s.SimulateDelayMaxMs = s.SimulateDelayMinMs
	}
	if s.SimulateDropProb < 0 {
		s.SimulateDropProb = 0
	}
	if s.SimulateDropProb > 1 {
		s.SimulateDropProb = 1
	}
	return s
}
