package listeners

import (
	"CityWatch/internal/models"
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/sse"
	"CityWatch/pkg/util"
)

const EventRecordChanged = "record.changed"

// initRecordListeners 记录变更推送给可以查看该资源的角色分组
func initRecordListeners(sig *util.Signals, hub *sse.Hub, m *metrics.Metrics) {
	sig.Connect(models.SigRecordChanged, func(sender any, params ...any) {
		ev, ok := sender.(*models.RecordEvent)
		if !ok {
			return
		}
		if m != nil {
			m.RecordRecordChange(ev.Resource, ev.Action)
		}
		for _, role := range models.RolesWithFullAccess(ev.Resource, models.ActionList) {
			hub.SendToGroup(models.RoleGroup(role), sse.Event{Type: EventRecordChanged, Data: ev})
		}
	})
}
