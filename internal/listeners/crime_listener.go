package listeners

import (
	"fmt"

	"CityWatch/internal/models"
	"CityWatch/pkg/util"
)

func actorID(params []any) string {
	if len(params) > 0 {
		if u, ok := params[0].(*models.User); ok && u != nil {
			return u.IDString()
		}
	}
	return ""
}

func initCrimeListeners(sig *util.Signals, n *Notifier) {
	sig.Connect(models.SigCrimeReported, func(sender any, params ...any) {
		crime, ok := sender.(*models.Crime)
		if !ok {
			return
		}
		n.NotifyRoles([]string{models.RoleAdmin, models.RoleOfficer}, actorID(params), Notice{
			Title:      "New crime report",
			Message:    fmt.Sprintf("#%d %s (%s priority)", crime.ID, crime.Title, crime.Priority),
			Kind:       models.SigCrimeReported,
			Resource:   models.ResCrimes,
			ResourceID: crime.ID,
		})
	})

	sig.Connect(models.SigCrimeAssigned, func(sender any, params ...any) {
		crime, ok := sender.(*models.Crime)
		if !ok {
			return
		}
		n.NotifyUsers([]string{crime.AssignedTo}, Notice{
			Title:      "Crime report assigned to you",
			Message:    fmt.Sprintf("#%d %s", crime.ID, crime.Title),
			Kind:       models.SigCrimeAssigned,
			Resource:   models.ResCrimes,
			ResourceID: crime.ID,
		})
		if !crime.Anonymous && crime.ReportedBy != crime.AssignedTo {
			n.NotifyUsers([]string{crime.ReportedBy}, Notice{
				Title:      "Your report has an investigator",
				Message:    fmt.Sprintf("Report #%d is now under review.", crime.ID),
				Kind:       models.SigCrimeAssigned,
				Resource:   models.ResCrimes,
				ResourceID: crime.ID,
			})
		}
	})

	sig.Connect(models.SigCrimeStatusChanged, func(sender any, params ...any) {
		crime, ok := sender.(*models.Crime)
		if !ok || crime.ReportedBy == "" || crime.ReportedBy == actorID(params) {
			return
		}
		n.NotifyUsers([]string{crime.ReportedBy}, Notice{
			Title:      "Report status updated",
			Message:    fmt.Sprintf("Report #%d is now %s.", crime.ID, crime.Status),
			Kind:       models.SigCrimeStatusChanged,
			Resource:   models.ResCrimes,
			ResourceID: crime.ID,
		})
	})

	sig.Connect(models.SigIncidentCreated, func(sender any, params ...any) {
		inc, ok := sender.(*models.Incident)
		if !ok {
			return
		}
		n.NotifyRoles([]string{models.RoleAdmin, models.RoleOfficer}, actorID(params), Notice{
			Title:      "New incident",
			Message:    fmt.Sprintf("#%d %s (%s)", inc.ID, inc.Title, inc.Severity),
			Kind:       models.SigIncidentCreated,
			Resource:   models.ResIncidents,
			ResourceID: inc.ID,
		})
	})

	sig.Connect(models.SigIncidentAssigned, func(sender any, params ...any) {
		inc, ok := sender.(*models.Incident)
		if !ok {
			return
		}
		n.NotifyUsers([]string{inc.AssignedTo}, Notice{
			Title:      "Incident assigned to you",
			Message:    fmt.Sprintf("#%d %s at %s", inc.ID, inc.Title, inc.Location),
			Kind:       models.SigIncidentAssigned,
			Resource:   models.ResIncidents,
			ResourceID: inc.ID,
		})
	})
}
