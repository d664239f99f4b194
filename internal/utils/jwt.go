package utils

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// Claims 是頻道授權 token 的內容，對應一個訪客身分
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.StandardClaims
}

// GenerateToken 簽發一個新的頻道授權 token
func GenerateToken(secret, userID, name string) (string, error) {
	nowTime := time.Now()
	expireTime := nowTime.Add(240 * time.Hour)

	claims := Claims{
		UserID: userID,
		Name:   name,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expireTime.Unix(),
			IssuedAt:  nowTime.Unix(),
		},
	}

	tokenClaims := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenClaims.SignedString([]byte(secret))
}

// ParseToken 解析和驗證頻道授權 token
func ParseToken(secret, token string) (*Claims, error) {
	tokenClaims, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if tokenClaims != nil {
		if claims, ok := tokenClaims.Claims.(*Claims); ok && tokenClaims.Valid {
			return claims, nil
		}
	}

	return nil, err
}
