package models

const (
	RoleAdmin   = "admin"
	RoleOfficer = "officer"
	RoleStaff   = "staff"
	RoleCitizen = "citizen"
)

var AllRoles = []string{RoleAdmin, RoleOfficer, RoleStaff, RoleCitizen}

// 资源名, 与表名一致
const (
	ResUsers           = "users"
	ResPendingAccounts = "pending_accounts"
	ResCrimes          = "crimes"
	ResIncidents       = "incidents"
	ResPatrolLogs      = "patrol_logs"
	ResCriminals       = "criminals"
	ResAssets          = "assets"
	ResFeedback        = "feedback"
	ResOfficers        = "officers"
	ResStaffSchedules  = "staff_schedules"
	ResAttachments     = "attachments"
	ResOperationLogs   = "operation_logs"
	ResDashboard       = "dashboard"
	ResSearch          = "search"
)

const (
	ActionList   = "list"
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Grant 授权范围
type Grant uint8

const (
	GrantNone Grant = iota
	GrantOwn        // 仅限自己的记录
	GrantAll
)

type roleGrants map[string]Grant

func grants(g Grant, roles ...string) roleGrants {
	out := roleGrants{}
	for _, r := range roles {
		out[r] = g
	}
	return out
}

func merge(sets ...roleGrants) roleGrants {
	out := roleGrants{}
	for _, s := range sets {
		for r, g := range s {
			out[r] = g
		}
	}
	return out
}

func readable(rg roleGrants) map[string]roleGrants {
	return map[string]roleGrants{ActionList: rg, ActionRead: rg}
}

var permissions = map[string]map[string]roleGrants{
	ResUsers: {
		ActionList: grants(GrantAll, RoleAdmin), ActionRead: grants(GrantAll, RoleAdmin),
		ActionCreate: grants(GrantAll, RoleAdmin), ActionUpdate: grants(GrantAll, RoleAdmin),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResPendingAccounts: {
		ActionList: grants(GrantAll, RoleAdmin), ActionRead: grants(GrantAll, RoleAdmin),
		ActionUpdate: grants(GrantAll, RoleAdmin), ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResCrimes: {
		ActionList:   merge(grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff), grants(GrantOwn, RoleCitizen)),
		ActionRead:   merge(grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff), grants(GrantOwn, RoleCitizen)),
		ActionCreate: grants(GrantAll, AllRoles...),
		ActionUpdate: merge(grants(GrantAll, RoleAdmin, RoleOfficer), grants(GrantOwn, RoleCitizen)),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResIncidents: {
		ActionList: grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff), ActionRead: grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff),
		ActionCreate: grants(GrantAll, RoleAdmin, RoleOfficer), ActionUpdate: grants(GrantAll, RoleAdmin, RoleOfficer),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResPatrolLogs: {
		ActionList: grants(GrantAll, RoleAdmin, RoleOfficer), ActionRead: grants(GrantAll, RoleAdmin, RoleOfficer),
		ActionCreate: grants(GrantAll, RoleAdmin, RoleOfficer),
		ActionUpdate: merge(grants(GrantAll, RoleAdmin), grants(GrantOwn, RoleOfficer)),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResCriminals: {
		ActionList: grants(GrantAll, RoleAdmin, RoleOfficer), ActionRead: grants(GrantAll, RoleAdmin, RoleOfficer),
		ActionCreate: grants(GrantAll, RoleAdmin, RoleOfficer), ActionUpdate: grants(GrantAll, RoleAdmin, RoleOfficer),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResAssets: {
		ActionList: grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff), ActionRead: grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff),
		ActionCreate: grants(GrantAll, RoleAdmin, RoleStaff), ActionUpdate: grants(GrantAll, RoleAdmin, RoleStaff),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResFeedback: {
		ActionList: grants(GrantAll, RoleAdmin, RoleStaff), ActionRead: grants(GrantAll, RoleAdmin, RoleStaff),
		ActionCreate: grants(GrantAll, AllRoles...), ActionUpdate: grants(GrantAll, RoleAdmin, RoleStaff),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResOfficers: {
		ActionList: grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff), ActionRead: grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff),
		ActionCreate: grants(GrantAll, RoleAdmin), ActionUpdate: grants(GrantAll, RoleAdmin),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResStaffSchedules: {
		ActionList:   merge(grants(GrantAll, RoleAdmin), grants(GrantOwn, RoleStaff, RoleOfficer)),
		ActionRead:   merge(grants(GrantAll, RoleAdmin), grants(GrantOwn, RoleStaff, RoleOfficer)),
		ActionCreate: grants(GrantAll, RoleAdmin), ActionUpdate: grants(GrantAll, RoleAdmin),
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResAttachments: {
		ActionDelete: grants(GrantAll, RoleAdmin),
	},
	ResOperationLogs: readable(grants(GrantAll, RoleAdmin)),
	ResDashboard:     readable(grants(GrantAll, RoleAdmin, RoleOfficer, RoleStaff)),
	ResSearch:        readable(grants(GrantAll, RoleAdmin, RoleOfficer)),
}

// Access 返回角色对资源动作的授权范围
func Access(role, resource, action string) Grant {
	actions, ok := permissions[resource]
	if !ok {
		return GrantNone
	}
	return actions[action][role]
}

// Can 角色集合成员判断
func Can(role, resource, action string) bool {
	return Access(role, resource, action) != GrantNone
}

// RolesWithFullAccess 返回可以不受限制执行该动作的角色
func RolesWithFullAccess(resource, action string) []string {
	var out []string
	for _, r := range AllRoles {
		if Access(r, resource, action) == GrantAll {
			out = append(out, r)
		}
	}
	return out
}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleGroup SSE 角色分组名
func RoleGroup(role string) string {
	return "role:" + role
}
