package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

var ErrInvalidToken = errors.New("invalid token")

func NewToken(op models.Operator, duration time.Duration, secret string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["sub"] = op.Name
	claims["role"] = op.Role
	claims["exp"] = time.Now().Add(duration).Unix()

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates an HS256 token and returns the operator it names.
func ParseToken(tokenString, secret string) (models.Operator, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return models.Operator{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Operator{}, ErrInvalidToken
	}

	name, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if name == "" || role == "" {
		return models.Operator{}, ErrInvalidToken
	}

	return models.Operator{Name: name, Role: role}, nil
}
