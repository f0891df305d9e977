package game

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"arenasim/physics"
)

const (
	DefaultPlayerSpeed  = 10.0
	DefaultPlayerSize   = 1.0
	DefaultBulletSpeed  = 20.0
	DefaultBulletSize   = 0.25
	DefaultShotCooldown = 10
	// DefaultSpawnAngle 出生朝向（弧度）
	DefaultSpawnAngle = 1.0
)

// Spawn 出生位置与朝向
type Spawn struct {
	Position mgl64.Vec2
	Angle    float64
}

// Config 模拟参数。零值字段在 NewSimulation 中取默认值。
type Config struct {
	PlayerSpeed float64
	PlayerSize  float64
	BulletSpeed float64
	BulletSize  float64
	// ShotCooldown 两次射击之间的最少帧数
	ShotCooldown int64
	// BulletTTL 子弹存活帧数，0 表示直到碰撞或被显式移除
	BulletTTL int64
	// Spawns 玩家按加入顺序轮流使用
	Spawns []Spawn
	World  physics.Config
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.PlayerSpeed <= 0 {
		c.PlayerSpeed = DefaultPlayerSpeed
	}
	if c.PlayerSize <= 0 {
		c.PlayerSize = DefaultPlayerSize
	}
	if c.BulletSpeed <= 0 {
		c.BulletSpeed = DefaultBulletSpeed
	}
	if c.BulletSize <= 0 {
		c.BulletSize = DefaultBulletSize
	}
	if c.ShotCooldown <= 0 {
		c.ShotCooldown = DefaultShotCooldown
	}
	if c.BulletTTL < 0 {
		c.BulletTTL = 0
	}
	if len(c.Spawns) == 0 {
		c.Spawns = []Spawn{{Angle: DefaultSpawnAngle}}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
