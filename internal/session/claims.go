package session

import (
	"log"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/model"
)

// userFromLogin builds the session user from the login response, taking
// anything the response left out from the token's claims. The signature
// is not checked: the server verifies the token on every request.
func userFromLogin(resp *apiclient.LoginResponse, token string) model.User {
	user := model.User{ID: resp.UserID, Email: resp.Email, Role: resp.Role}
	if user.ID != 0 && user.Email != "" && user.Role != "" {
		return user
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Printf("[Session] Token is not a readable JWT: %v", err)
		return user
	}

	if user.ID == 0 {
		user.ID = claimID(claims, "user_id", "userId", "sub")
	}
	if user.Email == "" {
		user.Email, _ = claims["email"].(string)
	}
	if user.Role == "" {
		user.Role, _ = claims["role"].(string)
	}
	return user
}

func claimID(claims jwt.MapClaims, keys ...string) int64 {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case float64:
			return int64(v)
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}
