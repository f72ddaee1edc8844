package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tradecore/logger"
)

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *Server) issueToken(userID int64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	c := claims{
		UserID: strconv.FormatInt(userID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(s.JWTSecret))
}

// authMiddleware resolves a bearer JWT to a user id and calls
// c.Set("user_id", ...); handlers read it back with c.GetString("user_id").
// Authentication itself (credential storage, session lifecycle) is an
// external concern; this middleware only verifies the token this process issued.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		cl, ok := parsed.Claims.(*claims)
		if !ok || cl.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}
		c.Set("user_id", cl.UserID)
		c.Next()
	}
}

func logReq(method, path string, status int, d time.Duration) {
	logger.Infof("%s %s -> %d (%s)", method, path, status, d.Round(time.Millisecond))
}
