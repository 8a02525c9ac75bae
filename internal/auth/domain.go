package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a user account as the authentication layer sees it.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	RoleName     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claims is the signed bearer token payload. The CSRF token travels inside
// the signed payload so that the double-submit check can tie a request back
// to the login that issued it.
type Claims struct {
	Username  string `json:"username"`
	CSRFToken string `json:"csrfToken"`
	jwt.RegisteredClaims
}

// UserID parses the token subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Credentials is what a successful login hands back to the client: the
// bearer token for the Authorization header and the CSRF token for the
// cookie.
type Credentials struct {
	AccessToken string
	CSRFToken   string
}
