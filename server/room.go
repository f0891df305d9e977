package server

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"arenasim/game"
	"arenasim/moves"
)

var errUnknownPlayer = errors.New("unknown player")

// control 加入/离开请求，在 Tick 线程中按到达顺序处理
type control struct {
	join bool
	id   PlayerID
	conn *ClientConn
}

// Room 房间世界：权威状态由 game.Simulation 维护，单线程 Tick 推进
type Room struct {
	ID string

	queue *moves.Queue
	sim   *game.Simulation // 只在 Tick 线程中访问

	mu       sync.Mutex
	players  map[PlayerID]*Player
	settings RoomSettings
	rng      *rand.Rand

	ctrlChan chan control

	metrics  *RoomMetrics
	tickSeq  atomic.Int64  // 下一个要计算的帧号
	checksum atomic.Uint64 // 最近一帧的状态哈希
	halted   atomic.Bool

	lastSent    map[string]game.ObjectState
	pendingHits []game.Hit

	tickerStarted bool
	stop          chan struct{}
	stopOnce      sync.Once
	onHalt        func(*Room)
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg RoomConfig) *Room {
	queue := moves.NewQueue(cfg.TickRate, cfg.BufferDepth, moves.WithLogger(SimLogger(id).Named("queue")))
	simCfg := cfg.Sim
	if simCfg.Logger == nil {
		simCfg.Logger = SimLogger(id)
	}
	return &Room{
		ID:       id,
		queue:    queue,
		sim:      game.NewSimulation(queue, simCfg),
		players:  make(map[PlayerID]*Player),
		settings: cfg.Settings.normalized(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		ctrlChan: make(chan control, 256), // 足够缓冲，避免网络协程阻塞
		metrics:  &RoomMetrics{},
		lastSent: make(map[string]game.ObjectState),
		stop:     make(chan struct{}),
	}
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }
func (r *Room) Frame() int64          { return r.tickSeq.Load() }
func (r *Room) Checksum() uint64      { return r.checksum.Load() }
func (r *Room) Halted() bool          { return r.halted.Load() }
func (r *Room) QueueSize() int        { return r.queue.Size() }

// Settings 当前可热更新规则的副本
func (r *Room) Settings() RoomSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// UpdateSettings 修改规则并返回规范化后的结果
func (r *Room) UpdateSettings(fn func(*RoomSettings)) RoomSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.settings
	fn(&s)
	r.settings = s.normalized()
	return r.settings
}

// JoinPlayer 登记玩家连接；模拟中的实体在下一次 Tick 创建。
// 同一 id 重连时替换旧连接。
func (r *Room) JoinPlayer(id PlayerID, conn *ClientConn) *Player {
	r.mu.Lock()
	p, ok := r.players[id]
	var old *ClientConn
	if ok {
		old = p.Conn
		p.Conn = conn
	} else {
		p = &Player{ID: id, Conn: conn}
		r.players[id] = p
	}
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close()
	}
	if !r.sendControl(control{join: true, id: id, conn: conn}) {
		// 房间已停止：不会再有 Tick 处理该请求
		r.dropConn(id, conn)
	}
	return p
}

// RequestLeave 请求在 Tick 线程中移除玩家；conn 不是当前连接时忽略（旧连接断开）
func (r *Room) RequestLeave(id PlayerID, conn *ClientConn) {
	if !r.sendControl(control{id: id, conn: conn}) {
		r.dropConn(id, conn)
	}
}

// sendControl 房间运行时阻塞写入，保证请求一定被处理；房间停止后返回 false
func (r *Room) sendControl(c control) bool {
	select {
	case <-r.stop:
		return false
	default:
	}
	select {
	case r.ctrlChan <- c:
		return true
	case <-r.stop:
		return false
	}
}

// dropConn 只移除连接登记，不触碰模拟（房间已停止时使用）
func (r *Room) dropConn(id PlayerID, conn *ClientConn) {
	r.mu.Lock()
	p, ok := r.players[id]
	if ok && (conn == nil || p.Conn == conn) {
		delete(r.players, id)
	}
	r.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// LeavePlayer 将玩家移出房间与模拟（Tick 线程）
func (r *Room) LeavePlayer(id PlayerID, conn *ClientConn) {
	r.mu.Lock()
	p, ok := r.players[id]
	if !ok || (conn != nil && p.Conn != conn) {
		r.mu.Unlock()
		return
	}
	delete(r.players, id)
	r.mu.Unlock()

	if p.Conn != nil {
		_ = p.Conn.Close()
	}
	r.sim.DestroyGameObject(string(id))
	Log.Infof("player left: room=%s player=%s frame=%d", r.ID, id, r.sim.Frame())
}

// OnInput 入站输入（不立即改变状态），校验、限流后写入输入队列，等 Tick 消费
func (r *Room) OnInput(id PlayerID, msg InputMessage) error {
	u, err := msg.ToUpdate(id, r.tickSeq.Load())
	if err != nil {
		r.metrics.IncInvalid()
		return err
	}

	r.mu.Lock()
	p, ok := r.players[id]
	if !ok {
		r.mu.Unlock()
		r.metrics.IncInvalid()
		return errUnknownPlayer
	}
	s := r.settings
	if s.MaxInputsPerTick > 0 && p.inputsThisTick >= s.MaxInputsPerTick {
		r.mu.Unlock()
		r.metrics.IncRateLimited()
		return nil
	}
	if msg.Seq > 0 {
		if msg.Seq <= p.lastSeq {
			r.mu.Unlock()
			r.metrics.IncOldSeqIgnored()
			return nil
		}
		p.lastSeq = msg.Seq
	}
	p.inputsThisTick++
	drop := s.SimulateDropProb > 0 && r.rng.Float64() < s.SimulateDropProb
	var delay time.Duration
	if s.SimulateDelayMaxMs > 0 {
		ms := s.SimulateDelayMinMs
		if span := s.SimulateDelayMaxMs - s.SimulateDelayMinMs; span > 0 {
			ms += r.rng.Intn(span + 1)
		}
		delay = time.Duration(ms) * time.Millisecond
	}
	r.mu.Unlock()

	if drop {
		r.metrics.IncDropsSimulated()
		return nil
	}
	if delay > 0 {
		time.AfterFunc(delay, func() { r.enqueue(u) })
		return nil
	}
	r.enqueue(u)
	return nil
}

func (r *Room) enqueue(u moves.PlayerMoveUpdate) {
	if err := r.queue.Add(u); err != nil {
		r.metrics.IncInvalid()
		Log.Debugf("input rejected: room=%s player=%s err=%v", r.ID, u.PlayerID(), err)
		return
	}
	r.metrics.IncAccepted()
}

// BeginTick 同一 Tick 时间线：重置限流计数等帧内状态
func (r *Room) BeginTick() {
	r.mu.Lock()
	for _, p := range r.players {
		p.inputsThisTick = 0
	}
	r.mu.Unlock()
}

// ProcessJoinsLeaves 处理排队的加入/离开请求（非阻塞 drain）
func (r *Room) ProcessJoinsLeaves() {
	for {
		select {
		case c := <-r.ctrlChan:
			if c.join {
				if added := r.sim.SetPlayers([]string{string(c.id)}); len(added) > 0 {
					Log.Infof("player joined: room=%s player=%s frame=%d", r.ID, c.id, r.sim.Frame())
				}
				r.mu.Lock()
				if p, ok := r.players[c.id]; ok && p.Conn == c.conn {
					p.needsFull = true
				}
				r.mu.Unlock()
			} else {
				r.LeavePlayer(c.id, c.conn)
			}
		default:
			return
		}
	}
}

// Step 推进模拟一帧并收集命中记录
func (r *Room) Step() error {
	if err := r.sim.NextFrame(); err != nil {
		return err
	}
	r.tickSeq.Store(r.sim.Frame())
	r.checksum.Store(r.sim.Checksum())
	r.metrics.SetEvicted(r.queue.Stats().Evicted)
	if hits := r.sim.DrainHits(); len(hits) > 0 {
		r.metrics.AddHits(len(hits))
		r.pendingHits = append(r.pendingHits, hits...)
		for _, h := range hits {
			Log.Infof("hit: room=%s frame=%d bullet=%s owner=%s player=%s", r.ID, h.Frame, h.BulletID, h.OwnerID, h.PlayerID)
		}
	}
	return nil
}

// Tick 一次完整的 Tick：处理输入 → 更新世界 → 广播结果
func (r *Room) Tick() error {
	r.BeginTick()
	r.ProcessJoinsLeaves()
	if err := r.Step(); err != nil {
		return err
	}
	r.BroadcastDelta()
	return nil
}

// Stop 停止 Tick 循环（可重复调用）
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Close 停止 Tick 并关闭全部连接
func (r *Room) Close() error {
	r.Stop()
	r.mu.Lock()
	conns := make([]*ClientConn, 0, len(r.players))
	for _, p := range r.players {
		if p.Conn != nil {
			conns = append(conns, p.Conn)
		}
	}
	r.mu.Unlock()

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	return err
}
