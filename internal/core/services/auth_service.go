package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// AuthService issues and validates dashboard tokens.
type AuthService interface {
	GenerateToken(subject, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	IsAdmin(claims *Claims) bool
}

// Claims are the JWT claims of a dashboard token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
	adminRole      string
	now            func() time.Time
}

// NewAuthService builds an HS256 token service. Tokens carrying adminRole
// unlock moderation actions.
func NewAuthService(jwtSecret string, accessTokenTTL time.Duration, adminRole string) AuthService {
	if adminRole == "" {
		adminRole = RoleAdmin
	}
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
		adminRole:      adminRole,
		now:            time.Now,
	}
}

// GenerateToken signs a token for subject with role.
func (s *authService) GenerateToken(subject, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies tokenString.
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// IsAdmin reports whether claims carry the admin role.
func (s *authService) IsAdmin(claims *Claims) bool {
	return claims != nil && claims.Role == s.adminRole
}
