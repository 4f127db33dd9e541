package listeners

import (
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/search"
	"CityWatch/pkg/util"
)

// Init 注册所有信号监听, engine 为 nil 时不维护全文索引
func Init(sig *util.Signals, n *Notifier, engine search.Engine, m *metrics.Metrics) {
	initUserListeners(sig, n)
	initCrimeListeners(sig, n)
	initOperationsListeners(sig, n)
	initRecordListeners(sig, n.Hub(), m)
	if engine != nil {
		initSearchListeners(sig, engine)
	}
}
