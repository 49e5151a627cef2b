package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of the session credential issued by the task API.
type Claims struct {
	Email string `json:"email,omitempty"`
	//has standard jwt field issued at, expires at etc
	jwt.RegisteredClaims
}
