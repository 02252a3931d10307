package auth

import (
	"fmt"
	"strings"

	"depo-backend/internal/apperr"
	"depo-backend/internal/config"
	"depo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxOperatorIDKey   = "operator_id"
	CtxOperatorRoleKey = "operator_role"
	CtxUsernameKey     = "username"
	CtxMustChangeKey   = "must_change_pwd"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header eksik")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization formatı 'Bearer <token>' olmalı")
		}

		tokenStr := parts[1]

		token, err := jwt.ParseWithClaims(tokenStr, &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("geçersiz imzalama yöntemi")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "Geçersiz veya süresi dolmuş token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Token çözümlenemedi")
		}

		c.Locals(CtxOperatorIDKey, claims.OperatorID)
		c.Locals(CtxOperatorRoleKey, claims.Role)
		c.Locals(CtxUsernameKey, claims.Username)
		c.Locals(CtxMustChangeKey, claims.MustChangePwd)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.OperatorRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(CtxOperatorRoleKey)
		role, ok := roleVal.(models.OperatorRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Bu işlem için yetkiniz yok")
	}
}

// RequirePasswordChanged: Parola değişimi zorunluysa diğer uçları kapatır.
func RequirePasswordChanged() fiber.Handler {
	return func(c *fiber.Ctx) error {
		mustChange, ok := c.Locals(CtxMustChangeKey).(bool)
		if ok && mustChange {
			return apperr.New(apperr.CodePwdChangeRequired, "Devam etmeden önce parolanızı değiştirmelisiniz")
		}
		return c.Next()
	}
}

// OperatorIDFromCtx: JWT claim'lerinden aktör operatörü çözer.
func OperatorIDFromCtx(c *fiber.Ctx) (uint, error) {
	id, ok := c.Locals(CtxOperatorIDKey).(uint)
	if !ok || id == 0 {
		return 0, fiber.NewError(fiber.StatusForbidden, "Operatör bilgisi alınamadı")
	}
	return id, nil
}
