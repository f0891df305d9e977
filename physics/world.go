package physics

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"
	"go.uber.org/zap"
)

var (
	ErrBodyAttached = errors.New("physics: body already belongs to a world")
	ErrInvalidStep  = errors.New("physics: invalid step")
	ErrNonFinite    = errors.New("physics: non-finite body state")
)

// Config 世界边界与空间哈希格子大小（世界单位）
type Config struct {
	MinX, MinY float64
	MaxX, MaxY float64
	CellSize   int
}

// DefaultConfig ±512 的正方形场地，16 单位一格
func DefaultConfig() Config {
	return Config{MinX: -512, MinY: -512, MaxX: 512, MaxY: 512, CellSize: 16}
}

func (c Config) withDefaults() Config {
	if c.MaxX <= c.MinX || c.MaxY <= c.MinY {
		d := DefaultConfig()
		c.MinX, c.MinY, c.MaxX, c.MaxY = d.MinX, d.MinY, d.MaxX, d.MaxY
	}
	if c.CellSize <= 0 {
		c.CellSize = DefaultConfig().CellSize
	}
	return c
}

// spaceScale 世界单位到 resolv 空间单位的倍数
const spaceScale = 100

// Contact 一次 Step 中检测到的接触；A 总是先加入世界的那个刚体
type Contact struct {
	A, B *Body
}

// World 刚体集合。单线程使用：调用方保证 Step 与增删不并发。
type World struct {
	cfg      Config
	space    *resolv.Space
	gridW    float64
	gridH    float64
	bodies   []*Body
	nextSeq  uint64
	contacts []Contact
	log      *zap.Logger
}

// NewWorld 创建世界；log 为 nil 时不输出
func NewWorld(cfg Config, log *zap.Logger) *World {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	cell := cfg.CellSize * spaceScale
	cols := int(math.Ceil((cfg.MaxX - cfg.MinX) * spaceScale / float64(cell)))
	rows := int(math.Ceil((cfg.MaxY - cfg.MinY) * spaceScale / float64(cell)))
	return &World{
		cfg:   cfg,
		space: resolv.NewSpace(cols*cell, rows*cell, cell, cell),
		gridW: float64(cols * cell),
		gridH: float64(rows * cell),
		log:   log,
	}
}

func (w *World) Config() Config { return w.cfg }

// Add 把刚体加入世界；受限刚体先被夹回边界内
func (w *World) Add(b *Body) error {
	if b.world != nil {
		return ErrBodyAttached
	}
	w.nextSeq++
	b.seq = w.nextSeq
	b.world = w
	if b.bounded {
		b.pos = w.clamp(b.pos, b.size)
	}
	b.from = b.pos
	w.space.Add(b.obj)
	b.sync()
	w.bodies = append(w.bodies, b)
	return nil
}

// Remove 从世界移除刚体；不在本世界中时为空操作
func (w *World) Remove(b *Body) {
	if b == nil || b.world != w {
		return
	}
	w.space.Remove(b.obj)
	b.world = nil
	if i := slices.Index(w.bodies, b); i >= 0 {
		w.bodies = slices.Delete(w.bodies, i, i+1)
	}
}

// Bodies 按加入顺序返回当前刚体
func (w *World) Bodies() []*Body {
	return slices.Clone(w.bodies)
}

func (w *World) BodyCount() int { return len(w.bodies) }

// Contains 点是否在世界边界内
func (w *World) Contains(p mgl64.Vec2) bool {
	return p.X() >= w.cfg.MinX && p.X() <= w.cfg.MaxX &&
		p.Y() >= w.cfg.MinY && p.Y() <= w.cfg.MaxY
}

// Step 以固定步长推进：按加入顺序积分位置并枚举接触。
// 接触按整段轨迹检测：两刚体在 [0, dt] 内任一时刻重叠即报告一次，
// 与速度和步长无关，步进开始时已重叠的也算。
// 状态非有限时返回错误且不修改任何刚体。
func (w *World) Step(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt=%v", ErrInvalidStep, dt)
	}
	next := make([]mgl64.Vec2, len(w.bodies))
	for i, b := range w.bodies {
		p := b.pos
		if b.vel[0] != 0 || b.vel[1] != 0 {
			p = p.Add(b.vel.Mul(dt))
		}
		if b.bounded {
			p = w.clamp(p, b.size)
		}
		if !finite(p) || !finite(b.vel) || math.IsNaN(b.angle) || math.IsInf(b.angle, 0) {
			return fmt.Errorf("%w: body %d pos=%v vel=%v", ErrNonFinite, b.seq, p, b.vel)
		}
		next[i] = p
	}

	for i, b := range w.bodies {
		b.from = b.pos
		b.pos = next[i]
		b.sync()
	}
	w.detectContacts()
	for _, b := range w.bodies {
		w.trackBounds(b)
	}
	return nil
}

// Contacts 最近一次 Step 产生的接触（按刚体加入顺序排序，每对最多一次）
func (w *World) Contacts() []Contact {
	return slices.Clone(w.contacts)
}

// detectContacts resolv 按扫过的包围盒给出候选，sweptOverlap 做精确判定。
// 包围盒超出网格的刚体与全部刚体逐一比较。
func (w *World) detectContacts() {
	w.contacts = w.contacts[:0]
	seen := make(map[[2]uint64]struct{})
	for _, b := range w.bodies {
		for _, other := range w.candidates(b) {
			if other == b || other.world != w {
				continue
			}
			a, c := b, other
			if a.seq > c.seq {
				a, c = c, a
			}
			key := [2]uint64{a.seq, c.seq}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if sweptOverlap(a, c) {
				w.contacts = append(w.contacts, Contact{A: a, B: c})
			}
		}
	}
	slices.SortFunc(w.contacts, func(x, y Contact) int {
		if x.A.seq != y.A.seq {
			return cmp.Compare(x.A.seq, y.A.seq)
		}
		return cmp.Compare(x.B.seq, y.B.seq)
	})
}

func (w *World) candidates(b *Body) []*Body {
	if !w.inGrid(b) {
		return w.bodies
	}
	col := b.obj.Check(0, 0)
	if col == nil {
		return nil
	}
	out := make([]*Body, 0, len(col.Objects))
	for _, o := range col.Objects {
		if other, ok := o.Data.(*Body); ok {
			out = append(out, other)
		}
	}
	return out
}

func (w *World) inGrid(b *Body) bool {
	o := b.obj
	return o.X >= 0 && o.Y >= 0 && o.X+o.W <= w.gridW && o.Y+o.H <= w.gridH
}

// sweptOverlap 两个轴对齐矩形在本步内是否有一段时间严格重叠。
// 以 b 为参照系，a 的相对位移为线性，逐轴求重叠时间区间再取交集。
func sweptOverlap(a, b *Body) bool {
	ext := a.size.Add(b.size).Mul(0.5)
	r0 := a.from.Sub(b.from)
	d := a.pos.Sub(a.from).Sub(b.pos.Sub(b.from))
	enter, exit := 0.0, 1.0
	for i := 0; i < 2; i++ {
		if d[i] == 0 {
			if math.Abs(r0[i]) >= ext[i] {
				return false
			}
			continue
		}
		t0 := (-ext[i] - r0[i]) / d[i]
		t1 := (ext[i] - r0[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		enter = max(enter, t0)
		exit = min(exit, t1)
	}
	return enter < exit
}

// clamp 把中心限制在边界内，使整个矩形留在世界中
func (w *World) clamp(p, size mgl64.Vec2) mgl64.Vec2 {
	lo := [2]float64{w.cfg.MinX, w.cfg.MinY}
	hi := [2]float64{w.cfg.MaxX, w.cfg.MaxY}
	for i := 0; i < 2; i++ {
		half := size[i] / 2
		l, h := lo[i]+half, hi[i]-half
		if l > h {
			p[i] = (lo[i] + hi[i]) / 2
			continue
		}
		p[i] = math.Min(math.Max(p[i], l), h)
	}
	return p
}

// trackBounds 越界状态变化时记录一次
func (w *World) trackBounds(b *Body) {
	out := !w.Contains(b.pos)
	if out == b.outside {
		return
	}
	b.outside = out
	if out {
		w.log.Debug("body left world bounds", zap.Uint64("body", b.seq), zap.String("tag", b.tag),
			zap.Float64("x", b.pos.X()), zap.Float64("y", b.pos.Y()))
	}
}

func finite(v mgl64.Vec2) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
