package models

import (
	"strconv"
	"strings"
	"time"

	"CityWatch/pkg/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// PasswordCost bcrypt 计算成本, 测试中可调低
var PasswordCost = bcrypt.DefaultCost

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"size:128;uniqueIndex" binding:"required,email,max=128"`
	PasswordHash string     `json:"-" gorm:"size:128"`
	DisplayName  string     `json:"displayName" gorm:"size:128" binding:"max=128"`
	Phone        string     `json:"phone" gorm:"size:64" binding:"max=64"`
	Role         string     `json:"role" gorm:"size:32;index" binding:"required,oneof=admin officer staff citizen"`
	Status       string     `json:"status" gorm:"size:32;default:active" binding:"omitempty,oneof=active disabled"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// IDString 引用字段使用十进制字符串
func (u *User) IDString() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}

func (u *User) Active() bool {
	return u.Status != UserStatusDisabled
}

func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return CheckPassword(u.PasswordHash, password)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", errors.BadRequest("password must be at least 6 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ParseID 把引用字段解析成主键
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// CreateUser 创建用户, 邮箱已被使用时返回 400
func CreateUser(db *gorm.DB, email, password, displayName, role string) (*User, error) {
	if !IsValidRole(role) {
		return nil, errors.BadRequest("invalid role")
	}
	email = NormalizeEmail(email)
	taken, err := EmailTaken(db, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errors.BadRequest("email already registered")
	}
	user := &User{Email: email, DisplayName: displayName, Role: role, Status: UserStatusActive}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := db.Create(user).Error; err != nil {
		return nil, errors.FromDB(err, "user")
	}
	return user, nil
}

func GetUserByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.First(&user, id).Error; err != nil {
		return nil, errors.FromDB(err, "user")
	}
	return &user, nil
}

func GetUserByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, errors.FromDB(err, "user")
	}
	return &user, nil
}

// EmailTaken 检查邮箱是否已属于其他用户
func EmailTaken(db *gorm.DB, email string, excludeID uint) (bool, error) {
	var n int64
	q := db.Model(&User{}).Where("email = ?", NormalizeEmail(email))
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func UpdatePassword(db *gorm.DB, user *User, password string) error {
	if err := user.SetPassword(password); err != nil {
		return err
	}
	return db.Model(user).Update("password_hash", user.PasswordHash).Error
}

func TouchLastLogin(db *gorm.DB, user *User) error {
	now := time.Now()
	user.LastLoginAt = &now
	return db.Model(user).UpdateColumn("last_login_at", now).Error
}

// ActiveUserIDsByRoles 返回指定角色的所有启用用户 ID
func ActiveUserIDsByRoles(db *gorm.DB, roles ...string) ([]string, error) {
	var ids []uint
	err := db.Model(&User{}).
		Where("role IN ? AND status = ?", roles, UserStatusActive).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatUint(uint64(id), 10))
	}
	return out, nil
}

// ActiveUserWithRole 校验引用的用户存在、启用且角色匹配
func ActiveUserWithRole(db *gorm.DB, ref string, roles ...string) (*User, error) {
	id, ok := ParseID(ref)
	if !ok {
		return nil, errors.BadRequest("invalid user reference")
	}
	user, err := GetUserByID(db, id)
	if err != nil {
		if errors.HTTPStatus(err) == 404 {
			return nil, errors.BadRequest("referenced user does not exist")
		}
		return nil, err
	}
	if !user.Active() {
		return nil, errors.BadRequest("referenced user is disabled")
	}
	if len(roles) > 0 {
		for _, r := range roles {
			if user.Role == r {
				return user, nil
			}
		}
		return nil, errors.WithCodef(400, "referenced user must have role %s", strings.Join(roles, " or "))
	}
	return user, nil
}

// EnsureAdmin 没有管理员时用给定账号创建一个
func EnsureAdmin(db *gorm.DB, email, password string) (*User, bool, error) {
	if email == "" || password == "" {
		return nil, false, nil
	}
	var n int64
	if err := db.Model(&User{}).Where("role = ?", RoleAdmin).Count(&n).Error; err != nil {
		return nil, false, err
	}
	if n > 0 {
		return nil, false, nil
	}
	user, err := CreateUser(db, email, password, "Administrator", RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
