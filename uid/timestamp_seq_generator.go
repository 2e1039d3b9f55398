package uid

import (
	"reflect"
	"time"
)

// TimestampSeqGenerator 高 52 位毫秒时间戳 + 低 12 位序列号
type TimestampSeqGenerator struct {
	state int64
}

func NewTimestampSeqGenerator() *TimestampSeqGenerator {
	return &TimestampSeqGenerator{state: time.Now().UnixMilli() << sequenceBits}
}

func (g *TimestampSeqGenerator) Kind() reflect.Kind {
	return reflect.Int64
}

func (g *TimestampSeqGenerator) Generate() any {
	return g.GenerateInt()
}

func (g *TimestampSeqGenerator) GenerateInt() int64 {
	timestamp, sequence := nextState(&g.state, func() int64 {
		return time.Now().UnixMilli()
	})
	return (timestamp << sequenceBits) | sequence
}
