package handlers

import (
	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *Handlers) GetObjs() []WebObject {
	return []WebObject{
		{
			Name:        "users",
			Resource:    models.ResUsers,
			Desc:        "用户",
			Model:       models.User{},
			Filterables: []string{"role", "status"},
			Editables:   []string{"email", "password", "displayName", "phone", "role", "status"},
			Searchables: []string{"email", "displayName", "phone"},
			Orderables:  []string{"email", "displayName", "lastLoginAt", "updatedAt"},
			Requireds:   []string{"email", "password", "role"},
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				user := vptr.(*models.User)
				user.Email = models.NormalizeEmail(user.Email)
				if taken, err := models.EmailTaken(db, user.Email, 0); err != nil {
					return err
				} else if taken {
					return errors.BadRequest("email already registered")
				}
				password, _ := vals["password"].(string)
				return user.SetPassword(password)
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				prev, user := old.(*models.User), vptr.(*models.User)
				if prev.ID == models.CurrentUser(c).ID {
					if user.Status == models.UserStatusDisabled {
						return forbidden("you cannot disable your own account")
					}
					if user.Role != prev.Role {
						return forbidden("you cannot change your own role")
					}
				}
				user.Email = models.NormalizeEmail(user.Email)
				if user.Email != prev.Email {
					if taken, err := models.EmailTaken(db, user.Email, user.ID); err != nil {
						return err
					} else if taken {
						return errors.BadRequest("email already registered")
					}
				}
				if password, ok := vals["password"].(string); ok && password != "" {
					return user.SetPassword(password)
				}
				return nil
			},
			BeforeDelete: func(db *gorm.DB, c *gin.Context, vptr any) error {
				if vptr.(*models.User).ID == models.CurrentUser(c).ID {
					return forbidden("you cannot delete your own account")
				}
				return nil
			},
			AfterWrite: func(c *gin.Context, action string, old, vptr any) {
				if action == models.ActionCreate {
					h.emit(c, models.SigUserCreate, vptr)
					return
				}
				if old != nil {
					h.auth.Invalidate(old.(*models.User).ID)
				}
			},
		},
		{
			Name:        "pending-accounts",
			Resource:    models.ResPendingAccounts,
			Desc:        "注册申请",
			Model:       models.PendingAccount{},
			Methods:     []string{models.ActionList, models.ActionRead, models.ActionDelete},
			Filterables: []string{"status", "role"},
			Searchables: []string{"email", "displayName"},
			Orderables:  []string{"email"},
		},
		{
			Name:        "crimes",
			Resource:    models.ResCrimes,
			Desc:        "报案",
			Model:       models.Crime{},
			Filterables: []string{"status", "priority", "category", "assignedTo", "reportedBy"},
			Editables:   []string{"title", "description", "category", "location", "latitude", "longitude", "occurredAt", "priority", "anonymous", "contactPhone"},
			Searchables: []string{"title", "description", "location"},
			Orderables:  []string{"priority", "status", "occurredAt", "updatedAt"},
			OwnerField:  "reportedBy",
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				crime := vptr.(*models.Crime)
				crime.ReportedBy = actorOf(c)
				crime.Status = models.CrimeSubmitted
				return nil
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				user := models.CurrentUser(c)
				if models.Access(user.Role, models.ResCrimes, models.ActionUpdate) == models.GrantOwn &&
					old.(*models.Crime).Status != models.CrimeSubmitted {
					return forbidden("report can no longer be edited")
				}
				return nil
			},
			AfterWrite: func(c *gin.Context, action string, old, vptr any) {
				if action == models.ActionCreate {
					h.emit(c, models.SigCrimeReported, vptr)
				}
			},
		},
		{
			Name:        "incidents",
			Resource:    models.ResIncidents,
			Desc:        "事件",
			Model:       models.Incident{},
			Filterables: []string{"status", "severity", "type", "assignedTo", "crimeId"},
			Editables:   []string{"title", "description", "type", "location", "latitude", "longitude", "severity", "crimeId", "occurredAt"},
			Searchables: []string{"title", "description", "location"},
			Orderables:  []string{"severity", "status", "occurredAt", "updatedAt"},
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				inc := vptr.(*models.Incident)
				inc.ReportedBy = actorOf(c)
				return checkCrimeLink(db, inc.CrimeID)
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				if _, ok := vals["crimeId"]; ok {
					return checkCrimeLink(db, vptr.(*models.Incident).CrimeID)
				}
				return nil
			},
			AfterWrite: func(c *gin.Context, action string, old, vptr any) {
				if action == models.ActionCreate {
					h.emit(c, models.SigIncidentCreated, vptr)
				}
			},
		},
		{
			Name:        "patrol-logs",
			Resource:    models.ResPatrolLogs,
			Desc:        "巡逻记录",
			Model:       models.PatrolLog{},
			Filterables: []string{"officerId", "status", "area"},
			Editables:   []string{"officerId", "area", "route", "startedAt", "observations", "incidentCount"},
			Searchables: []string{"area", "route", "observations"},
			Orderables:  []string{"startedAt", "endedAt", "updatedAt"},
			OwnerField:  "officerId",
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				p := vptr.(*models.PatrolLog)
				user := models.CurrentUser(c)
				if user.Role != models.RoleAdmin || p.OfficerID == "" {
					p.OfficerID = user.IDString()
					return nil
				}
				_, err := models.ActiveUserWithRole(db, p.OfficerID, models.RoleOfficer)
				return err
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				prev, p := old.(*models.PatrolLog), vptr.(*models.PatrolLog)
				if p.OfficerID == prev.OfficerID {
					return nil
				}
				if models.CurrentUser(c).Role != models.RoleAdmin {
					p.OfficerID = prev.OfficerID
					return nil
				}
				_, err := models.ActiveUserWithRole(db, p.OfficerID, models.RoleOfficer)
				return err
			},
		},
		{
			Name:        "criminals",
			Resource:    models.ResCriminals,
			Desc:        "罪犯档案",
			Model:       models.Criminal{},
			Filterables: []string{"status", "dangerLevel", "nationalId", "gender"},
			Editables:   []string{"fullName", "alias", "dateOfBirth", "gender", "nationalId", "address", "offenses", "dangerLevel", "status", "lastKnownLocation", "photoUrl"},
			Searchables: []string{"fullName", "alias", "offenses", "nationalId", "lastKnownLocation"},
			Orderables:  []string{"fullName", "dangerLevel", "status", "updatedAt"},
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				vptr.(*models.Criminal).CreatedBy = actorOf(c)
				return nil
			},
		},
		{
			Name:        "assets",
			Resource:    models.ResAssets,
			Desc:        "资产",
			Model:       models.Asset{},
			Filterables: []string{"status", "category", "assignedTo"},
			Editables:   []string{"name", "category", "serialNumber", "status", "location", "purchasedAt", "notes"},
			Searchables: []string{"name", "serialNumber", "location"},
			Orderables:  []string{"name", "status", "purchasedAt", "updatedAt"},
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				return checkUnique(db, &models.Asset{}, "serial_number", vptr.(*models.Asset).SerialNumber, 0, "serial number")
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				a := vptr.(*models.Asset)
				return checkUnique(db, &models.Asset{}, "serial_number", a.SerialNumber, a.ID, "serial number")
			},
		},
		{
			Name:        "feedback",
			Resource:    models.ResFeedback,
			Desc:        "反馈",
			Model:       models.Feedback{},
			Filterables: []string{"status", "category", "rating", "submittedBy"},
			Editables:   []string{"subject", "message", "rating", "category"},
			Searchables: []string{"subject", "message"},
			Orderables:  []string{"rating", "status", "updatedAt"},
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				vptr.(*models.Feedback).SubmittedBy = actorOf(c)
				return nil
			},
			AfterWrite: func(c *gin.Context, action string, old, vptr any) {
				if action == models.ActionCreate {
					h.emit(c, models.SigFeedbackSubmitted, vptr)
				}
			},
		},
		{
			Name:        "officers",
			Resource:    models.ResOfficers,
			Desc:        "警员",
			Model:       models.Officer{},
			Filterables: []string{"status", "unit", "rank", "userId"},
			Editables:   []string{"userId", "badgeNumber", "fullName", "rank", "unit", "phone", "status", "joinedAt"},
			Searchables: []string{"fullName", "badgeNumber", "unit"},
			Orderables:  []string{"fullName", "badgeNumber", "status", "joinedAt"},
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				return checkOfficer(db, vptr.(*models.Officer))
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				return checkOfficer(db, vptr.(*models.Officer))
			},
		},
		{
			Name:        "staff-schedules",
			Resource:    models.ResStaffSchedules,
			Desc:        "排班",
			Model:       models.StaffSchedule{},
			Filterables: []string{"staffId", "status", "shift"},
			Editables:   []string{"staffId", "shift", "startTime", "endTime", "location", "task", "status"},
			Searchables: []string{"location", "task"},
			Orderables:  []string{"startTime", "endTime", "status"},
			OwnerField:  "staffId",
			BeforeCreate: func(db *gorm.DB, c *gin.Context, vptr any, vals map[string]any) error {
				s := vptr.(*models.StaffSchedule)
				s.CreatedBy = actorOf(c)
				if s.StaffID == "" {
					return nil
				}
				_, err := models.ActiveUserWithRole(db, s.StaffID, models.RoleStaff, models.RoleOfficer)
				return err
			},
			BeforeUpdate: func(db *gorm.DB, c *gin.Context, old, vptr any, vals map[string]any) error {
				prev, s := old.(*models.StaffSchedule), vptr.(*models.StaffSchedule)
				if !s.StartTime.Equal(prev.StartTime) {
					s.RemindedAt = nil
				}
				if s.StaffID == prev.StaffID {
					return nil
				}
				_, err := models.ActiveUserWithRole(db, s.StaffID, models.RoleStaff, models.RoleOfficer)
				return err
			},
			AfterWrite: func(c *gin.Context, action string, old, vptr any) {
				if action != models.ActionDelete {
					h.emit(c, models.SigScheduleSaved, vptr)
				}
			},
		},
		{
			Name:        "audit-logs",
			Resource:    models.ResOperationLogs,
			Desc:        "操作日志",
			Model:       middleware.OperationLog{},
			Methods:     []string{models.ActionList, models.ActionRead},
			Filterables: []string{"userId", "role", "action", "status", "requestMethod"},
			Searchables: []string{"target", "path", "username"},
			Orderables:  []string{"status"},
		},
	}
}

func checkCrimeLink(db *gorm.DB, crimeID *uint) error {
	if crimeID == nil || *crimeID == 0 {
		return nil
	}
	var n int64
	if err := db.Model(&models.Crime{}).Where("id = ?", *crimeID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errors.BadRequest("linked crime does not exist")
	}
	return nil
}

func checkUnique(db *gorm.DB, model any, column, value string, excludeID uint, label string) error {
	var n int64
	q := db.Model(model).Where(column+" = ?", value)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return errors.BadRequest(label + " already exists")
	}
	return nil
}

func checkOfficer(db *gorm.DB, o *models.Officer) error {
	if err := checkUnique(db, &models.Officer{}, "badge_number", o.BadgeNumber, o.ID, "badge number"); err != nil {
		return err
	}
	if o.UserID == "" {
		return nil
	}
	id, ok := models.ParseID(o.UserID)
	if !ok {
		return errors.BadRequest("invalid user reference")
	}
	if _, err := models.GetUserByID(db, id); err != nil {
		if errors.HTTPStatus(err) == 404 {
			return errors.BadRequest("referenced user does not exist")
		}
		return err
	}
	return nil
}
