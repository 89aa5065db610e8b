package auth

import (
	"errors"
	"time"

	"tablet-tracker/internal/config"
	"tablet-tracker/internal/timeutil"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// Claims identify the worker or manager behind a request. Accounts live in the
// external login service; this service only checks the signature.
type Claims struct {
	Employee string `json:"employee"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{
		secret:     []byte(cfg.JWT.Secret),
		issuer:     cfg.JWT.Issuer,
		expiration: time.Duration(cfg.JWT.ExpirationHours) * time.Hour,
	}
}

// GenerateToken creates a new JWT token for an employee
func (j *JWTManager) GenerateToken(employee, role string) (string, error) {
	now := timeutil.Now()

	claims := &Claims{
		Employee: employee,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   employee,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken verifies a JWT token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	}, jwt.WithIssuer(j.issuer))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Employee == "" {
		return nil, errors.New("token has no employee")
	}

	return claims, nil
}
