package metrics

import (
	"sync"
)

var (
	globalMetrics *Metrics
	mu            sync.RWMutex
)

// SetGlobalMetrics 设置全局指标实例
func SetGlobalMetrics(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics 获取全局指标实例，未设置时返回 nil
func GetGlobalMetrics() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return globalMetrics
}
