package moves

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Direction 八方向移动意图（屏幕坐标：x 向右，y 向下）
type Direction int

const (
	DirUp Direction = iota
	DirUpRight
	DirRight
	DirDownRight
	DirDown
	DirDownLeft
	DirLeft
	DirUpLeft

	directionCount
)

// diag 对角方向单轴分量 1/√2
var diag = 1 / math.Sqrt2

// directionVectors 方向到单位向量的查表（唯一来源）
var directionVectors = [directionCount]mgl64.Vec2{
	DirUp:        {0, -1},
	DirUpRight:   {diag, -diag},
	DirRight:     {1, 0},
	DirDownRight: {diag, diag},
	DirDown:      {0, 1},
	DirDownLeft:  {-diag, diag},
	DirLeft:      {-1, 0},
	DirUpLeft:    {-diag, -diag},
}

var directionNames = [directionCount]string{
	DirUp:        "up",
	DirUpRight:   "up_right",
	DirRight:     "right",
	DirDownRight: "down_right",
	DirDown:      "down",
	DirDownLeft:  "down_left",
	DirLeft:      "left",
	DirUpLeft:    "up_left",
}

// Valid 是否为八方向之一
func (d Direction) Valid() bool {
	return d >= 0 && d < directionCount
}

// Vector 返回方向的单位向量；非法方向返回零向量
func (d Direction) Vector() mgl64.Vec2 {
	if !d.Valid() {
		return mgl64.Vec2{}
	}
	return directionVectors[d]
}

func (d Direction) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return directionNames[d]
}

// ParseDirection 解析客户端方向字符串，兼容 "upleft"、"up-left"、"up_left"
func ParseDirection(s string) (Direction, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	for d := Direction(0); d < directionCount; d++ {
		if strings.ReplaceAll(directionNames[d], "_", "") == norm {
			return d, true
		}
	}
	return 0, false
}
