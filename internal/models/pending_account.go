package models

import (
	"time"

	"CityWatch/pkg/errors"

	"gorm.io/gorm"
)

const (
	PendingStatusPending  = "pending"
	PendingStatusApproved = "approved"
	PendingStatusRejected = "rejected"
	PendingStatusExpired  = "expired"
)

// PendingAccount 等待管理员审核的注册申请
type PendingAccount struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"size:128;index"`
	PasswordHash string     `json:"-" gorm:"size:128"`
	DisplayName  string     `json:"displayName" gorm:"size:128"`
	Phone        string     `json:"phone" gorm:"size:64"`
	Role         string     `json:"role" gorm:"size:32"`
	BadgeNumber  string     `json:"badgeNumber" gorm:"size:64"`
	Reason       string     `json:"reason" gorm:"size:512"`
	Status       string     `json:"status" gorm:"size:32;index"`
	ReviewedBy   string     `json:"reviewedBy" gorm:"size:32"`
	ReviewedAt   *time.Time `json:"reviewedAt"`
	Note         string     `json:"note" gorm:"size:512"`
	UserID       *uint      `json:"userId"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

type RegisterForm struct {
	Email       string `json:"email" binding:"required,email,max=128"`
	Password    string `json:"password" binding:"required,min=6,max=72"`
	DisplayName string `json:"displayName" binding:"required,max=128"`
	Phone       string `json:"phone" binding:"max=64"`
	Role        string `json:"role" binding:"omitempty,oneof=officer staff citizen"`
	BadgeNumber string `json:"badgeNumber" binding:"required_if=Role officer,max=64"`
	Reason      string `json:"reason" binding:"max=512"`
}

// CreatePendingAccount 保存注册申请, 邮箱已被用户或待审申请占用时返回 400
func CreatePendingAccount(db *gorm.DB, form *RegisterForm) (*PendingAccount, error) {
	email := NormalizeEmail(form.Email)
	taken, err := EmailTaken(db, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errors.BadRequest("email already registered")
	}
	var n int64
	if err := db.Model(&PendingAccount{}).
		Where("email = ? AND status = ?", email, PendingStatusPending).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errors.BadRequest("a registration request for this email is already pending")
	}
	hash, err := HashPassword(form.Password)
	if err != nil {
		return nil, err
	}
	role := form.Role
	if role == "" {
		role = RoleCitizen
	}
	pa := &PendingAccount{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  form.DisplayName,
		Phone:        form.Phone,
		Role:         role,
		BadgeNumber:  form.BadgeNumber,
		Reason:       form.Reason,
		Status:       PendingStatusPending,
	}
	if err := db.Create(pa).Error; err != nil {
		return nil, errors.FromDB(err, "pending account")
	}
	return pa, nil
}

func GetPendingAccount(db *gorm.DB, id uint) (*PendingAccount, error) {
	var pa PendingAccount
	if err := db.First(&pa, id).Error; err != nil {
		return nil, errors.FromDB(err, "pending account")
	}
	return &pa, nil
}

// ApprovePendingAccount 在事务中创建用户, 警员申请同时创建警员档案
func ApprovePendingAccount(db *gorm.DB, id uint, reviewer string) (*User, *PendingAccount, error) {
	var (
		user *User
		pa   *PendingAccount
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		pa, err = GetPendingAccount(tx, id)
		if err != nil {
			return err
		}
		if pa.Status != PendingStatusPending {
			return errors.WithCodef(400, "request is already %s", pa.Status)
		}
		taken, err := EmailTaken(tx, pa.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return errors.BadRequest("email already registered")
		}
		if pa.Role == RoleOfficer && pa.BadgeNumber != "" {
			if taken, err := BadgeTaken(tx, pa.BadgeNumber, 0); err != nil {
				return err
			} else if taken {
				return errors.BadRequest("badge number already in use")
			}
		}
		user = &User{
			Email:        pa.Email,
			PasswordHash: pa.PasswordHash,
			DisplayName:  pa.DisplayName,
			Phone:        pa.Phone,
			Role:         pa.Role,
			Status:       UserStatusActive,
		}
		if err := tx.Create(user).Error; err != nil {
			return errors.FromDB(err, "user")
		}
		if pa.Role == RoleOfficer {
			now := time.Now()
			officer := &Officer{
				UserID:      user.IDString(),
				BadgeNumber: pa.BadgeNumber,
				FullName:    pa.DisplayName,
				Phone:       pa.Phone,
				Status:      OfficerOffDuty,
				JoinedAt:    &now,
			}
			if officer.BadgeNumber == "" {
				officer.BadgeNumber = "PENDING-" + user.IDString()
			}
			if err := tx.Create(officer).Error; err != nil {
				return errors.FromDB(err, "officer")
			}
		}
		return markReviewed(tx, pa, PendingStatusApproved, reviewer, "", &user.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	return user, pa, nil
}

func RejectPendingAccount(db *gorm.DB, id uint, reviewer, note string) (*PendingAccount, error) {
	var pa *PendingAccount
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		pa, err = GetPendingAccount(tx, id)
		if err != nil {
			return err
		}
		if pa.Status != PendingStatusPending {
			return errors.WithCodef(400, "request is already %s", pa.Status)
		}
		return markReviewed(tx, pa, PendingStatusRejected, reviewer, note, nil)
	})
	if err != nil {
		return nil, err
	}
	return pa, nil
}

func markReviewed(tx *gorm.DB, pa *PendingAccount, status, reviewer, note string, userID *uint) error {
	now := time.Now()
	pa.Status = status
	pa.ReviewedBy = reviewer
	pa.ReviewedAt = &now
	pa.Note = note
	pa.UserID = userID
	return tx.Save(pa).Error
}

// ExpirePendingAccounts 把超期未审的申请标记为 expired
func ExpirePendingAccounts(db *gorm.DB, before time.Time) (int64, error) {
	res := db.Model(&PendingAccount{}).
		Where("status = ? AND created_at < ?", PendingStatusPending, before).
		Updates(map[string]any{"status": PendingStatusExpired, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}
