//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds hash many sign ups in tests
	return bcrypt.DefaultCost
}
