package listeners

import (
	"fmt"

	"CityWatch/internal/models"
	"CityWatch/pkg/util"
)

func initUserListeners(sig *util.Signals, n *Notifier) {
	// 新用户欢迎通知
	sig.Connect(models.SigUserCreate, func(sender any, params ...any) {
		user, ok := sender.(*models.User)
		if !ok {
			return
		}
		n.NotifyUsers([]string{user.IDString()}, Notice{
			Title:      "Welcome to CityWatch",
			Message:    fmt.Sprintf("Your %s account is ready.", user.Role),
			Kind:       "account.welcome",
			Resource:   models.ResUsers,
			ResourceID: user.ID,
		})
	})

	sig.Connect(models.SigAccountRequested, func(sender any, params ...any) {
		pa, ok := sender.(*models.PendingAccount)
		if !ok {
			return
		}
		n.NotifyRoles([]string{models.RoleAdmin}, "", Notice{
			Title:      "New account request",
			Message:    fmt.Sprintf("%s requested a %s account.", pa.Email, pa.Role),
			Kind:       models.SigAccountRequested,
			Resource:   models.ResPendingAccounts,
			ResourceID: pa.ID,
		})
	})

	sig.Connect(models.SigAccountApproved, func(sender any, params ...any) {
		user, ok := sender.(*models.User)
		if !ok {
			return
		}
		n.NotifyUsers([]string{user.IDString()}, Notice{
			Title:      "Account approved",
			Message:    "Your registration has been approved. Welcome aboard.",
			Kind:       models.SigAccountApproved,
			Resource:   models.ResUsers,
			ResourceID: user.ID,
		})
	})
}
