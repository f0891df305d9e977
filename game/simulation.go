package game

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"arenasim/moves"
	"arenasim/physics"
)

var (
	// ErrDuplicateID 注册已存在的 id；模拟状态不变
	ErrDuplicateID = errors.New("game: duplicate object id")
	// ErrHalted 物理步进失败后模拟不再推进
	ErrHalted    = errors.New("game: simulation halted")
	ErrNilObject = errors.New("game: nil object or body")
)

// bulletNamespace 子弹 id 由 (射击者, 帧号) 派生，重放时保持一致
var bulletNamespace = uuid.MustParse("6f1c8f0e-2b1d-4c52-9a57-3e0c4d1f8b21")

// Hit 子弹命中玩家的记录，供计分等外部逻辑消费
type Hit struct {
	Frame    int64  `json:"frame" msgpack:"frame"`
	BulletID string `json:"bullet" msgpack:"bullet"`
	OwnerID  string `json:"owner" msgpack:"owner"`
	PlayerID string `json:"player" msgpack:"player"`
}

// Simulation 权威物理模拟：拥有物理世界、帧计数与对象注册表。
// 非并发安全：NextFrame 与 Add/Destroy 必须在同一线程（Tick 协程）中调用；
// 只有 moves.Queue 可以在 Tick 之间被其他协程写入。
type Simulation struct {
	cfg   Config
	queue *moves.Queue
	world *physics.World
	log   *zap.Logger

	objects  *orderedmap.OrderedMap[string, GameObject]
	players  []string
	frame    int64
	spawnIdx int

	doomed []string
	hits   []Hit
	halted error
}

// NewSimulation 创建模拟；步长取 1/queue.TickRate()
func NewSimulation(queue *moves.Queue, cfg Config) *Simulation {
	cfg = cfg.withDefaults()
	if queue == nil {
		queue = moves.NewQueue(0, 0)
	}
	return &Simulation{
		cfg:     cfg,
		queue:   queue,
		world:   physics.NewWorld(cfg.World, cfg.Logger.Named("physics")),
		log:     cfg.Logger,
		objects: orderedmap.NewOrderedMap[string, GameObject](),
	}
}

func (s *Simulation) Config() Config        { return s.cfg }
func (s *Simulation) Queue() *moves.Queue   { return s.queue }
func (s *Simulation) World() *physics.World { return s.world }
func (s *Simulation) Frame() int64          { return s.frame }
func (s *Simulation) ObjectCount() int      { return s.objects.Len() }
func (s *Simulation) Halted() bool          { return s.halted != nil }

// Object 按 id 查找存活对象
func (s *Simulation) Object(id string) (GameObject, bool) {
	return s.objects.Get(id)
}

// Objects 按注册顺序返回存活对象
func (s *Simulation) Objects() []GameObject {
	out := make([]GameObject, 0, s.objects.Len())
	for el := s.objects.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// Player 按 id 查找玩家
func (s *Simulation) Player(id string) (*Player, bool) {
	obj, ok := s.objects.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := obj.(*Player)
	return p, ok
}

// Players 按加入顺序返回活跃玩家
func (s *Simulation) Players() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, id := range s.players {
		if p, ok := s.Player(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// NewPlayer 以本模拟的配置与下一个出生点构造玩家（不注册）
func (s *Simulation) NewPlayer(id string) *Player {
	spawn := s.cfg.Spawns[s.spawnIdx%len(s.cfg.Spawns)]
	s.spawnIdx++
	return NewPlayer(id, spawn, s.cfg.PlayerSpeed, s.cfg.PlayerSize)
}

// NewBullet 以本模拟的子弹尺寸构造子弹（不注册）
func (s *Simulation) NewBullet(id, owner string, pos, vel mgl64.Vec2) *Bullet {
	return NewBullet(id, owner, pos, vel, s.cfg.BulletSize)
}

// SetPlayers 为尚不存在的 id 创建并注册玩家；已存在的 id 跳过。
// 返回本次新建的玩家。
func (s *Simulation) SetPlayers(ids []string) []*Player {
	var added []*Player
	for _, id := range ids {
		if id == "" {
			continue
		}
		if obj, exists := s.objects.Get(id); exists {
			if _, isPlayer := obj.(*Player); !isPlayer {
				s.log.Warn("player id taken by another object", zapPlayer(id), zap.String("kind", string(KindOf(obj))))
			}
			continue
		}
		p := s.NewPlayer(id)
		if err := s.AddGameObject(p); err != nil {
			s.log.Warn("add player failed", zapPlayer(id), zapErr(err))
			continue
		}
		added = append(added, p)
	}
	return added
}

// AddGameObject 注册对象并把刚体加入物理世界
func (s *Simulation) AddGameObject(obj GameObject) error {
	if obj == nil || obj.Body() == nil {
		return ErrNilObject
	}
	id := obj.ID()
	if _, exists := s.objects.Get(id); exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	body := obj.Body()
	if err := s.world.Add(body); err != nil {
		return fmt.Errorf("game: add %q: %w", id, err)
	}
	body.SetUserData(obj)
	s.objects.Set(id, obj)
	if _, ok := obj.(*Player); ok {
		s.players = append(s.players, id)
		s.log.Info("player joined", zapPlayer(id), zap.Int64("frame", s.frame))
	}
	return nil
}

// DestroyGameObject 注销对象并移除其刚体；未知 id 为空操作
func (s *Simulation) DestroyGameObject(id string) {
	obj, ok := s.objects.Get(id)
	if !ok {
		return
	}
	s.objects.Delete(id)
	s.world.Remove(obj.Body())
	if _, isPlayer := obj.(*Player); isPlayer {
		if i := slices.Index(s.players, id); i >= 0 {
			s.players = slices.Delete(s.players, i, i+1)
		}
		s.queue.Drop(id)
	}
	s.log.Debug("object destroyed", zap.String("id", id), zap.String("kind", string(KindOf(obj))), zap.Int64("frame", s.frame))
}

// NextFrame 推进一帧：取输入 → 应用移动 → 对象更新 → 物理步进 → 碰撞处理 → 帧号加一。
// 物理步进失败时模拟停机，之后的调用都返回 ErrHalted。
func (s *Simulation) NextFrame() error {
	if s.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, s.halted)
	}
	frame := s.frame

	for _, p := range s.Players() {
		u, ok := s.queue.Next(p.id, frame)
		if !ok {
			u = moves.StopMove(p.id, frame)
		}
		p.ApplyMove(u)
	}

	for _, obj := range s.Objects() {
		if _, alive := s.objects.Get(obj.ID()); alive {
			obj.Update(s)
		}
	}

	if err := s.world.Step(s.queue.StepSeconds()); err != nil {
		s.halted = err
		s.log.Error("physics step failed, simulation halted", zap.Int64("frame", frame), zapErr(err))
		return fmt.Errorf("game: frame %d: %w", frame, err)
	}

	for _, c := range s.world.Contacts() {
		a, aok := c.A.UserData().(GameObject)
		b, bok := c.B.UserData().(GameObject)
		if !aok || !bok {
			continue
		}
		a.OnCollision(s, b)
		b.OnCollision(s, a)
	}
	for _, id := range s.doomed {
		s.DestroyGameObject(id)
	}
	s.doomed = s.doomed[:0]

	s.frame++
	return nil
}

// DrainHits 取出上次调用以来的命中记录
func (s *Simulation) DrainHits() []Hit {
	hits := s.hits
	s.hits = nil
	return hits
}

// scheduleDestroy 本帧碰撞处理结束后销毁；已在列表中时返回 false
func (s *Simulation) scheduleDestroy(id string) bool {
	if slices.Contains(s.doomed, id) {
		return false
	}
	s.doomed = append(s.doomed, id)
	return true
}

func (s *Simulation) recordHit(b *Bullet, p *Player) {
	h := Hit{Frame: s.frame, BulletID: b.id, OwnerID: b.owner, PlayerID: p.id}
	s.hits = append(s.hits, h)
	s.log.Debug("bullet hit player",
		zap.String("bullet", h.BulletID), zap.String("owner", h.OwnerID), zapPlayer(h.PlayerID), zap.Int64("frame", h.Frame))
}

// fire 在玩家前方生成一颗子弹，偏移量保证不与射击者重叠
func (s *Simulation) fire(p *Player) error {
	facing := p.Facing()
	offset := (s.cfg.PlayerSize+s.cfg.BulletSize)*math.Sqrt2/2 + 0.01
	pos := p.body.Position().Add(facing.Mul(offset))
	id := uuid.NewSHA1(bulletNamespace, []byte(fmt.Sprintf("%s:%d", p.id, s.frame))).String()
	b := s.NewBullet(id, p.id, pos, facing.Mul(s.cfg.BulletSpeed))
	return s.AddGameObject(b)
}

func zapPlayer(id string) zap.Field { return zap.String("player", id) }
func zapErr(err error) zap.Field    { return zap.Error(err) }
