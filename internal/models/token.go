package models

import (
	"time"
)

type TokenType string

const (
	TokenAccess  TokenType = "ACCESS"
	TokenRefresh TokenType = "REFRESH"
)

// Encoded token and its expiration time
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on authentication
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Claims of a successfully verified token
type TokenClaims struct {
	SubjectID int64
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Authenticated caller. Built from a verified access token and passed explicitly
type Principal struct {
	UserID    int64
	Email     string
	Roles     []Role
	ExpiresAt time.Time // access token expiration
}

const BearerTokenType = "Bearer"

// What the service returns to the client on register, login and refresh
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // access token lifetime in seconds
	UserID       int64
	Email        string
	Phone        string
	Roles        []string
}
