package service

import (
	"sync"
	"time"
)

// LocalPartitionMetrics 进程内 QPS 统计，按账户累计操作数，
// 查询时按距上次查询的时间折算成 QPS。
type LocalPartitionMetrics struct {
	mu       sync.Mutex
	counts   map[string]int
	lastRead map[string]time.Time
}

func NewLocalPartitionMetrics() *LocalPartitionMetrics {
	return &LocalPartitionMetrics{
		counts:   make(map[string]int),
		lastRead: make(map[string]time.Time),
	}
}

func (m *LocalPartitionMetrics) Inc(accountKey string) {
	m.mu.Lock()
	m.counts[accountKey]++
	m.mu.Unlock()
}

func (m *LocalPartitionMetrics) GetAccountQPS(accountKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	last, ok := m.lastRead[accountKey]
	count := m.counts[accountKey]
	m.counts[accountKey] = 0
	m.lastRead[accountKey] = now
	if !ok {
		return count
	}
	secs := now.Sub(last).Seconds()
	if secs <= 0 {
		return count
	}
	return int(float64(count) / secs)
}

func (m *LocalPartitionMetrics) GetPartitionQPS(partitionID string) int {
	// 分区级负载由账户级折算，这里返回0表示不单独采集
	return 0
}
