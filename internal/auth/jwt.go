package auth

import (
	"time"

	"depo-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWTCustomClaims struct {
	OperatorID    uint                `json:"operator_id"`
	Username      string              `json:"username"`
	Role          models.OperatorRole `json:"role"`
	MustChangePwd bool                `json:"must_change_pwd"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, operator *models.Operator) (string, error) {
	claims := &JWTCustomClaims{
		OperatorID:    operator.ID,
		Username:      operator.Username,
		Role:          operator.Role,
		MustChangePwd: operator.MustChangePwd,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)), // 1 gün
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
