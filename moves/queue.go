package moves

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTickRate 未指定时的模拟频率（30 TPS）
	DefaultTickRate = 30
	// DefaultDepth 每个玩家最多缓存的未消费记录数
	DefaultDepth = 10
)

var (
	ErrEmptyPlayerID    = errors.New("moves: empty player id")
	ErrInvalidDirection = errors.New("moves: invalid direction")
	ErrNegativeTick     = errors.New("moves: negative tick")
)

// QueueStats 队列运行期计数
type QueueStats struct {
	Admitted int64
	Evicted  int64
	Rejected int64
}

// Queue 按玩家缓存移动记录，把客户端到达时序与固定 Tick 消费解耦。
// Add 可在网络协程中调用；Next 只由 Tick 线程调用。
type Queue struct {
	mu       sync.Mutex
	tickRate int
	depth    int
	pending  map[string][]PlayerMoveUpdate
	size     int
	stats    QueueStats
	log      *zap.Logger
}

// QueueOption 队列可选配置
type QueueOption func(*Queue)

// WithLogger 设置队列日志（默认不输出）
func WithLogger(l *zap.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// NewQueue 创建队列；tickRate、depth 非正数时使用默认值
func NewQueue(tickRate, depth int, opts ...QueueOption) *Queue {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	q := &Queue{
		tickRate: tickRate,
		depth:    depth,
		pending:  make(map[string][]PlayerMoveUpdate),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add 追加一条记录，按 (tick, seq, 到达顺序) 有序插入。
// 缓冲已满时先淘汰该玩家最早的一条再接纳新记录。
func (q *Queue) Add(u PlayerMoveUpdate) error {
	if err := validate(u); err != nil {
		q.mu.Lock()
		q.stats.Rejected++
		q.mu.Unlock()
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	buf := q.pending[u.playerID]
	if len(buf) >= q.depth {
		dropped := buf[0]
		buf = buf[1:]
		q.size--
		q.stats.Evicted++
		q.log.Debug("move evicted",
			zap.String("player", dropped.playerID),
			zap.Int64("tick", dropped.tick),
			zap.Int64("seq", dropped.seq))
	}

	i := len(buf)
	for j, existing := range buf {
		if u.before(existing) {
			i = j
			break
		}
	}
	buf = append(buf, PlayerMoveUpdate{})
	copy(buf[i+1:], buf[i:])
	buf[i] = u

	q.pending[u.playerID] = buf
	q.size++
	q.stats.Admitted++
	return nil
}

// Next 取出该玩家在 frame 时已到期（tick <= frame）的最早记录。
// 无到期记录时返回 false。
func (q *Queue) Next(playerID string, frame int64) (PlayerMoveUpdate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := q.pending[playerID]
	if len(buf) == 0 || buf[0].tick > frame {
		return PlayerMoveUpdate{}, false
	}
	u := buf[0]
	if len(buf) == 1 {
		delete(q.pending, playerID)
	} else {
		q.pending[playerID] = buf[1:]
	}
	q.size--
	return u, true
}

// Drop 丢弃玩家的全部未消费记录（玩家离开时）
func (q *Queue) Drop(playerID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending[playerID])
	delete(q.pending, playerID)
	q.size -= n
	return n
}

// Size 所有玩家未消费记录总数
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// PlayerSize 单个玩家未消费记录数
func (q *Queue) PlayerSize(playerID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[playerID])
}

func (q *Queue) TickRate() int { return q.tickRate }
func (q *Queue) Depth() int    { return q.depth }

// TickInterval 每个 Tick 的墙钟时长
func (q *Queue) TickInterval() time.Duration {
	return time.Second / time.Duration(q.tickRate)
}

// StepSeconds 每个 Tick 的模拟时长（秒）
func (q *Queue) StepSeconds() float64 {
	return 1 / float64(q.tickRate)
}

// FrameAt 经过 elapsed 后到达的帧号
func (q *Queue) FrameAt(elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64(elapsed / q.TickInterval())
}

// Stats 返回计数快照
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func validate(u PlayerMoveUpdate) error {
	if u.playerID == "" {
		return ErrEmptyPlayerID
	}
	if !u.direction.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDirection, int(u.direction))
	}
	if u.tick < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTick, u.tick)
	}
	return nil
}
