package auth

import (
	"depo-backend/internal/apperr"
	"depo-backend/internal/config"
	"depo-backend/internal/database"
	"depo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token         string `json:"token"`
	OperatorID    uint   `json:"operator_id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Role          string `json:"role"`
	MustChangePwd bool   `json:"must_change_pwd"`
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Kullanıcı adı ve parola zorunlu")
		}

		var operator models.Operator
		if err := database.DB.First(&operator, "username = ?", body.Username).Error; err != nil {
			return apperr.New(apperr.CodeAuthFailed, "Kullanıcı adı veya parola hatalı")
		}
		if operator.Status != models.StatusActive {
			return apperr.New(apperr.CodeAuthFailed, "Operatör pasif durumda")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(body.Password)); err != nil {
			return apperr.New(apperr.CodeAuthFailed, "Kullanıcı adı veya parola hatalı")
		}

		token, err := GenerateToken(cfg.JWTSecret, &operator)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(LoginResponse{
			Token:         token,
			OperatorID:    operator.ID,
			Username:      operator.Username,
			DisplayName:   operator.DisplayName,
			Role:          string(operator.Role),
			MustChangePwd: operator.MustChangePwd,
		})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, err := OperatorIDFromCtx(c)
		if err != nil {
			return err
		}

		var operator models.Operator
		if err := database.DB.First(&operator, "id = ?", operatorID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Operatör bulunamadı")
		}

		return c.JSON(fiber.Map{
			"operator_id":     operator.ID,
			"username":        operator.Username,
			"display_name":    operator.DisplayName,
			"role":            operator.Role,
			"status":          operator.Status,
			"must_change_pwd": operator.MustChangePwd,
		})
	}
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /api/auth/change-password
func ChangePasswordHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		operatorID, err := OperatorIDFromCtx(c)
		if err != nil {
			return err
		}

		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if len(body.NewPassword) < 6 {
			return fiber.NewError(fiber.StatusBadRequest, "Yeni parola en az 6 karakter olmalı")
		}

		var operator models.Operator
		if err := database.DB.First(&operator, "id = ?", operatorID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Operatör bulunamadı")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(body.OldPassword)); err != nil {
			return apperr.New(apperr.CodeAuthFailed, "Mevcut parola hatalı")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Parola güncellenemedi")
		}

		if err := database.DB.Model(&operator).Updates(map[string]interface{}{
			"password_hash":   string(hash),
			"must_change_pwd": false,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Parola güncellenemedi")
		}

		// Yeni claim'lerle token üret (must_change_pwd artık false)
		operator.MustChangePwd = false
		token, err := GenerateToken(cfg.JWTSecret, &operator)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(fiber.Map{"token": token})
	}
}
