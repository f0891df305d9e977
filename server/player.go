package server

// PlayerID 表示玩家唯一标识
type PlayerID string

// Player 房间内的连接端玩家。权威的位置状态在 game.Simulation 中。
type Player struct {
	ID   PlayerID
	Conn *ClientConn // 网络连接的发送端（写协程）

	lastSeq        int64 // 已接受的最大客户端序列号
	inputsThisTick int   // 本 Tick 已接受的输入数（限流）
	needsFull      bool  // 下一次广播发送全量状态
}
