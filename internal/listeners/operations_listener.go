package listeners

import (
	"fmt"

	"CityWatch/internal/models"
	"CityWatch/pkg/util"
)

func initOperationsListeners(sig *util.Signals, n *Notifier) {
	sig.Connect(models.SigFeedbackSubmitted, func(sender any, params ...any) {
		fb, ok := sender.(*models.Feedback)
		if !ok {
			return
		}
		n.NotifyRoles([]string{models.RoleAdmin, models.RoleStaff}, actorID(params), Notice{
			Title:      "New feedback",
			Message:    fb.Subject,
			Kind:       models.SigFeedbackSubmitted,
			Resource:   models.ResFeedback,
			ResourceID: fb.ID,
		})
	})

	sig.Connect(models.SigFeedbackResponded, func(sender any, params ...any) {
		fb, ok := sender.(*models.Feedback)
		if !ok {
			return
		}
		n.NotifyUsers([]string{fb.SubmittedBy}, Notice{
			Title:      "Your feedback got a response",
			Message:    fb.Response,
			Kind:       models.SigFeedbackResponded,
			Resource:   models.ResFeedback,
			ResourceID: fb.ID,
		})
	})

	sig.Connect(models.SigAssetAssigned, func(sender any, params ...any) {
		asset, ok := sender.(*models.Asset)
		if !ok || asset.AssignedTo == "" {
			return
		}
		n.NotifyUsers([]string{asset.AssignedTo}, Notice{
			Title:      "Asset assigned to you",
			Message:    fmt.Sprintf("%s (%s)", asset.Name, asset.SerialNumber),
			Kind:       models.SigAssetAssigned,
			Resource:   models.ResAssets,
			ResourceID: asset.ID,
		})
	})

	sig.Connect(models.SigScheduleSaved, func(sender any, params ...any) {
		s, ok := sender.(*models.StaffSchedule)
		if !ok {
			return
		}
		n.NotifyUsers([]string{s.StaffID}, Notice{
			Title:      "Schedule updated",
			Message:    ScheduleMessage(s),
			Kind:       models.SigScheduleSaved,
			Resource:   models.ResStaffSchedules,
			ResourceID: s.ID,
		})
	})
}

func ScheduleMessage(s *models.StaffSchedule) string {
	msg := fmt.Sprintf("%s shift %s - %s", s.Shift, s.StartTime.Format("2006-01-02 15:04"), s.EndTime.Format("15:04"))
	if s.Location != "" {
		msg += " at " + s.Location
	}
	if s.Status == models.ScheduleCancelled {
		msg += " (cancelled)"
	}
	return msg
}
