package id

import (
	"errors"
	"time"

	"github.com/sony/sonyflake"
)

// 基准时间 2024-01-01 00:00:00 UTC
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var ErrInitFailed = errors.New("初始化ID生成器失败")

// Generator 广播和通知的主键
type Generator interface {
	NextID() (int64, error)
}

type SonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewGenerator machineID 为 0 时使用本机私有 IP 的低 16 位
func NewGenerator(machineID uint16) (*SonyflakeGenerator, error) {
	st := sonyflake.Settings{StartTime: epoch}
	if machineID > 0 {
		st.MachineID = func() (uint16, error) {
			return machineID, nil
		}
	}
	sf := sonyflake.NewSonyflake(st)
	if sf == nil {
		return nil, ErrInitFailed
	}
	return &SonyflakeGenerator{sf: sf}, nil
}

func (g *SonyflakeGenerator) NextID() (int64, error) {
	v, err := g.sf.NextID()
	return int64(v), err
}

// ExtractTime 从ID中取出生成时间，精度 10ms
func ExtractTime(id int64) time.Time {
	parts := sonyflake.Decompose(uint64(id))
	return epoch.Add(time.Duration(parts["time"]) * 10 * time.Millisecond)
}
