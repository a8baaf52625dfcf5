package model

import "gorm.io/gorm"

// Directory roles. The messaging role pairing is fixed: students talk to
// teachers, teachers and superadmins talk to students.
const (
	RoleStudent    = "student"
	RoleTeacher    = "teacher"
	RoleSuperadmin = "superadmin"
)

// User struct
type User struct {
	gorm.Model
	Username  string `gorm:"uniqueIndex;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	FullName  string `gorm:"not null" json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `gorm:"not null;default:student" json:"role"`

	Otp_enabled bool `gorm:"default:false;"`
	Otp_secret  string
}
