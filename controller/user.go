package controller

import (
	"classboard-service/model"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type User struct {
	DB  *gorm.DB
	Log *zap.SugaredLogger
}

func NewUser(db *gorm.DB, log *zap.SugaredLogger) *User {
	return &User{DB: db, Log: log}
}

// List returns the whole directory. Reachable only through the casbin-gated
// admin group.
func (u *User) List(c *fiber.Ctx) error {
	var users []model.User
	if err := u.DB.Order("full_name asc").Find(&users).Error; err != nil {
		return internalError(c)
	}

	type entry struct {
		ID        uint   `json:"id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url,omitempty"`
		Role      string `json:"role"`
	}
	entries := make([]entry, 0, len(users))
	for _, usr := range users {
		entries = append(entries, entry{
			ID:        usr.ID,
			Username:  usr.Username,
			Email:     usr.Email,
			FullName:  usr.FullName,
			AvatarURL: usr.AvatarURL,
			Role:      usr.Role,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    entries,
	})
}

func (u *User) Profile(c *fiber.Ctx) error {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)

	userModel := new(model.User)
	if err := u.DB.First(&userModel, claims["id"]).Error; err != nil {
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"id":         userModel.ID,
			"created":    userModel.CreatedAt.Unix(),
			"username":   userModel.Username,
			"email":      userModel.Email,
			"full_name":  userModel.FullName,
			"avatar_url": userModel.AvatarURL,
			"role":       userModel.Role,
			"otp":        userModel.Otp_enabled,
		},
	})
}
