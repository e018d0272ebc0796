package auth

import (
	"errors"
	"strings"

	"tap-arena/internal/game"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid_credentials")

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RoleForUsername assigns the role a newly registered user gets.
func RoleForUsername(username string) game.Role {
	switch {
	case strings.EqualFold(username, "admin"):
		return game.RoleAdmin
	case strings.EqualFold(username, "nikita"), username == "Никита":
		return game.RoleNikita
	default:
		return game.RolePlayer
	}
}
