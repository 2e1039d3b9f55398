package uid

import (
	"net"
	"reflect"
	"sync/atomic"
	"time"
)

type SnowflakeOptions struct {
	MachineID *int64 `cfg:"machineID"` // 为 nil 时从本机 IP 推导
}

// SnowflakeGenerator 1 位符号位 + 41 位时间戳 + 10 位机器 ID + 12 位序列号
type SnowflakeGenerator struct {
	state     int64 // 高位时间戳，低 12 位序列号
	machineID int64
	epoch     int64
}

const (
	sequenceBits  = 12
	machineIDBits = 10

	maxSequence  = (1 << sequenceBits) - 1
	maxMachineID = (1 << machineIDBits) - 1

	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

var snowflakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func NewSnowflakeGenerator(options *SnowflakeOptions) *SnowflakeGenerator {
	var machineID int64
	if options != nil && options.MachineID != nil {
		machineID = *options.MachineID
	} else {
		machineID = machineIDFromIP()
	}

	return &SnowflakeGenerator{
		state:     (time.Now().UnixMilli() - snowflakeEpoch) << sequenceBits,
		machineID: machineID & maxMachineID,
		epoch:     snowflakeEpoch,
	}
}

// machineIDFromIP 取第一个非回环 IPv4 地址的低两个字节
func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				return int64(ipv4[2])<<8 | int64(ipv4[3])
			}
		}
	}
	return 0
}

func (g *SnowflakeGenerator) Kind() reflect.Kind {
	return reflect.Int64
}

func (g *SnowflakeGenerator) Generate() any {
	return g.GenerateInt()
}

func (g *SnowflakeGenerator) GenerateInt() int64 {
	timestamp, sequence := nextState(&g.state, func() int64 {
		return time.Now().UnixMilli() - g.epoch
	})
	return (timestamp << timestampShift) | (g.machineID << machineIDShift) | sequence
}

// nextState 原子推进 时间戳+序列号 状态，同一毫秒序列号溢出时等待下一毫秒
func nextState(state *int64, now func() int64) (int64, int64) {
	for {
		oldState := atomic.LoadInt64(state)
		oldTimestamp := oldState >> sequenceBits
		oldSequence := oldState & maxSequence

		timestamp := now()
		var sequence int64
		if timestamp <= oldTimestamp {
			timestamp = oldTimestamp
			sequence = (oldSequence + 1) & maxSequence
			if sequence == 0 {
				for timestamp <= oldTimestamp {
					timestamp = now()
				}
			}
		}

		if atomic.CompareAndSwapInt64(state, oldState, (timestamp<<sequenceBits)|sequence) {
			return timestamp, sequence
		}
	}
}
