package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/user"
)

// Credentials is what login needs to know about an account.
type Credentials struct {
	UserID       int64
	PasswordHash string
	Role         string
}

// RepositoryAPI looks up stored credentials by email.
type RepositoryAPI interface {
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	GetUser(ctx context.Context, id int64) (*user.User, error)
}

// TokenGenerator creates and verifies access tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID int64, role identity.Role) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (*LoginResponse, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        *user.User `json:"user"`
}

// Claims carries the caller identity. The role is trusted until expiry;
// a role change takes effect on the next login.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims. An unrecognized role yields
// RoleUnknown, which every policy check denies.
func (c *Claims) Principal() identity.Principal {
	role, _ := identity.ParseRole(c.Role)
	return identity.Principal{UserID: c.UserID, Role: role}
}

type JWTTokenGenerator struct {
	Secret         []byte
	AccessTokenTTL time.Duration
	Issuer         string
}
