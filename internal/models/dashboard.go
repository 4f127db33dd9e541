package models

import (
	"gorm.io/gorm"
)

type DashboardStats struct {
	Totals          map[string]int64 `json:"totals"`
	CrimesByStatus  map[string]int64 `json:"crimesByStatus"`
	AssetsByStatus  map[string]int64 `json:"assetsByStatus"`
	OpenIncidents   int64            `json:"openIncidents"`
	OfficersOnDuty  int64            `json:"officersOnDuty"`
	PendingAccounts int64            `json:"pendingAccounts"`
	NewFeedback     int64            `json:"newFeedback"`
	OngoingPatrols  int64            `json:"ongoingPatrols"`
	WantedCriminals int64            `json:"wantedCriminals"`
}

type statusCount struct {
	Status string
	N      int64
}

func countBy(db *gorm.DB, model any) (map[string]int64, error) {
	var rows []statusCount
	if err := db.Model(model).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

func countWhere(db *gorm.DB, model any, query string, args ...any) (int64, error) {
	var n int64
	err := db.Model(model).Where(query, args...).Count(&n).Error
	return n, err
}

// GetDashboardStats 汇总各表的数量
func GetDashboardStats(db *gorm.DB) (*DashboardStats, error) {
	stats := &DashboardStats{Totals: map[string]int64{}}
	tables := []struct {
		name  string
		model any
	}{
		{ResUsers, &User{}},
		{ResPendingAccounts, &PendingAccount{}},
		{ResCrimes, &Crime{}},
		{ResIncidents, &Incident{}},
		{ResPatrolLogs, &PatrolLog{}},
		{ResCriminals, &Criminal{}},
		{ResAssets, &Asset{}},
		{ResFeedback, &Feedback{}},
		{ResOfficers, &Officer{}},
		{ResStaffSchedules, &StaffSchedule{}},
	}
	for _, t := range tables {
		var n int64
		if err := db.Model(t.model).Count(&n).Error; err != nil {
			return nil, err
		}
		stats.Totals[t.name] = n
	}

	var err error
	if stats.CrimesByStatus, err = countBy(db, &Crime{}); err != nil {
		return nil, err
	}
	if stats.AssetsByStatus, err = countBy(db, &Asset{}); err != nil {
		return nil, err
	}
	counts := []struct {
		dst   *int64
		model any
		query string
		arg   any
	}{
		{&stats.OpenIncidents, &Incident{}, "status <> ?", IncidentClosed},
		{&stats.OfficersOnDuty, &Officer{}, "status = ?", OfficerOnDuty},
		{&stats.PendingAccounts, &PendingAccount{}, "status = ?", PendingStatusPending},
		{&stats.NewFeedback, &Feedback{}, "status = ?", FeedbackNew},
		{&stats.OngoingPatrols, &PatrolLog{}, "status = ?", PatrolOngoing},
		{&stats.WantedCriminals, &Criminal{}, "status = ?", CriminalWanted},
	}
	for _, c := range counts {
		if *c.dst, err = countWhere(db, c.model, c.query, c.arg); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
