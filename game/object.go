package game

import "arenasim/physics"

// GameObject 世界中由刚体支撑的实体。对象独占自己的刚体。
type GameObject interface {
	ID() string
	Body() *physics.Body
	// Update 每帧在物理步进之前调用
	Update(sim *Simulation)
	// OnCollision 物理步进报告接触后调用，双方各调用一次
	OnCollision(sim *Simulation, other GameObject)
}

// ObjectKind 广播与日志中使用的对象类别
type ObjectKind string

const (
	KindPlayer ObjectKind = "player"
	KindBullet ObjectKind = "bullet"
)

// KindOf 返回对象类别
func KindOf(obj GameObject) ObjectKind {
	switch obj.(type) {
	case *Player:
		return KindPlayer
	case *Bullet:
		return KindBullet
	}
	return ""
}
