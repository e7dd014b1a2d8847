package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

var jwtSecret []byte

// InitJWT sets the HMAC secret used to sign and verify session tokens.
func InitJWT(secret string) error {
	if secret == "" {
		return errors.New("jwt secret is empty")
	}
	jwtSecret = []byte(secret)
	return nil
}

// GenerateJWT issues a session token for a Farcaster id. ttl <= 0 uses the default lifetime.
func GenerateJWT(fid int64, ttl time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret is not initialized")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"fid": fid,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseJWT verifies the token and returns its fid claim.
func ParseJWT(tokenString string) (int64, error) {
	if len(jwtSecret) == 0 {
		return 0, errors.New("jwt secret is not initialized")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	fid, ok := claims["fid"].(float64)
	if !ok || fid <= 0 {
		return 0, errors.New("fid not found")
	}

	return int64(fid), nil
}
