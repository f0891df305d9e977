package physics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"
)

// BodyDef 创建刚体的参数；Position 为矩形中心
type BodyDef struct {
	Position mgl64.Vec2
	Velocity mgl64.Vec2
	Angle    float64
	Width    float64
	Height   float64
	Bounded  bool // 限制在世界边界内
	Tag      string
	UserData any
}

// Body 轴对齐矩形刚体。位置、速度、朝角由本包维护，resolv 只做空间划分。
type Body struct {
	world *World
	seq   uint64
	obj   *resolv.Object

	pos     mgl64.Vec2
	vel     mgl64.Vec2
	angle   float64
	size    mgl64.Vec2
	bounded bool
	tag     string
	data    any

	// from 最近一次 Step 开始时的位置
	from    mgl64.Vec2
	outside bool
}

// NewBody 创建尚未加入任何 World 的刚体
func NewBody(def BodyDef) *Body {
	w, h := def.Width, def.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = w
	}
	var tags []string
	if def.Tag != "" {
		tags = append(tags, def.Tag)
	}
	b := &Body{
		pos:     def.Position,
		from:    def.Position,
		vel:     def.Velocity,
		angle:   def.Angle,
		size:    mgl64.Vec2{w, h},
		bounded: def.Bounded,
		tag:     def.Tag,
		data:    def.UserData,
	}
	b.obj = resolv.NewObject(0, 0, 0, 0, tags...)
	b.obj.Data = b
	return b
}

func (b *Body) Position() mgl64.Vec2       { return b.pos }
func (b *Body) LinearVelocity() mgl64.Vec2 { return b.vel }
func (b *Body) Angle() float64             { return b.angle }
func (b *Body) Size() mgl64.Vec2           { return b.size }
func (b *Body) Bounded() bool              { return b.bounded }
func (b *Body) Tag() string                { return b.tag }
func (b *Body) UserData() any              { return b.data }
func (b *Body) InWorld() bool              { return b.world != nil }

// Outside 最近一次 Step 后中心是否在世界边界外
func (b *Body) Outside() bool { return b.outside }

// SetPosition 立即移动刚体（不产生碰撞，碰撞在下一次 Step 中检测）
func (b *Body) SetPosition(p mgl64.Vec2) {
	if b.world != nil && b.bounded {
		p = b.world.clamp(p, b.size)
	}
	b.pos = p
	b.from = p
	b.sync()
}

func (b *Body) SetLinearVelocity(v mgl64.Vec2) { b.vel = v }
func (b *Body) SetAngle(a float64)             { b.angle = a }
func (b *Body) SetUserData(d any)              { b.data = d }

// sweptBounds 本步内扫过的包围盒（左上、右下，世界坐标）
func (b *Body) sweptBounds() (lo, hi mgl64.Vec2) {
	half := b.size.Mul(0.5)
	lo = mgl64.Vec2{min(b.from.X(), b.pos.X()), min(b.from.Y(), b.pos.Y())}.Sub(half)
	hi = mgl64.Vec2{max(b.from.X(), b.pos.X()), max(b.from.Y(), b.pos.Y())}.Add(half)
	return lo, hi
}

// sync 把扫过的包围盒换算到 resolv 空间并更新所在格子。
// resolv 以整数像素计算格子（右边界取 X+W-1），这里按 spaceScale 放大并向外各扩一个单位。
func (b *Body) sync() {
	if b.world == nil {
		return
	}
	cfg := b.world.cfg
	lo, hi := b.sweptBounds()
	b.obj.X = (lo.X()-cfg.MinX)*spaceScale - 1
	b.obj.Y = (lo.Y()-cfg.MinY)*spaceScale - 1
	b.obj.W = (hi.X()-lo.X())*spaceScale + 2
	b.obj.H = (hi.Y()-lo.Y())*spaceScale + 2
	b.obj.Update()
}
