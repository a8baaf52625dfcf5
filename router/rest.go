package router

import (
	"classboard-service/controller"
	"classboard-service/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App, auth *controller.Auth, user *controller.User, chat *controller.Chat, enforcer *casbin.Enforcer) {
	api := app.Group("/v1", logger.New())

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", auth.Signup)
	authGroup.Post("/signin", auth.Signin)
	authGroup.Post("/token/renew", auth.TokenRenew)
	authGroup.Post("/2fa/secret", middleware.JWT(), middleware.OTP(), auth.OtpSecret)
	authGroup.Post("/2fa/verify", middleware.JWT(), middleware.OTP(), auth.OtpVerify)
	authGroup.Post("/2fa/validate", middleware.JWT(), auth.OtpValidate)
	authGroup.Post("/2fa/disable", middleware.JWT(), middleware.OTP(), auth.OtpDisable)

	// User
	userGroup := api.Group("/user", middleware.JWT(), middleware.OTP())
	userGroup.Get("/profile", user.Profile)

	// Chat
	chatGroup := api.Group("/chat", middleware.JWT(), middleware.OTP())
	chatGroup.Get("/contacts", chat.ListContacts)
	chatGroup.Get("/messages/:id", chat.FetchMessages)
	chatGroup.Post("/messages", chat.SendMessage)
	chatGroup.Post("/messages/:id/read", chat.MarkRead)
	chatGroup.Delete("/conversations/:id", chat.DeleteConversation)
	chatGroup.Post("/attachments", chat.UploadAttachment)
	chatGroup.Get("/preview", chat.ResolveLinkPreview)

	// Admin
	admin := api.Group("/admin", middleware.JWT(), middleware.OTP(), middleware.RBAC(enforcer))
	admin.Get("/users", user.List)
}
