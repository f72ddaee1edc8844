package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"tradecore/apperr"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	if existing, _ := s.Users.ByUsername(req.Username); existing != nil {
		writeError(c, apperr.New(apperr.KindConflict, "username already registered"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(c, apperr.Internal(err, "hash password"))
		return
	}
	user, err := s.Users.Create(req.Username, string(hash))
	if err != nil {
		writeError(c, apperr.Internal(err, "create user"))
		return
	}
	token, err := s.issueToken(user.ID, 24*time.Hour)
	if err != nil {
		writeError(c, apperr.Internal(err, "issue token"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID, "username": user.Username, "token": token})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	user, err := s.Users.ByUsername(req.Username)
	if err != nil {
		writeError(c, apperr.Internal(err, "lookup user"))
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(c, apperr.New(apperr.KindUnauthorized, "invalid username or password"))
		return
	}
	token, err := s.issueToken(user.ID, 24*time.Hour)
	if err != nil {
		writeError(c, apperr.Internal(err, "issue token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleRefresh reissues a token for the caller's current bearer
// credential, extending the session without re-sending a password.
func (s *Server) handleRefresh(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.GetString("user_id"), 10, 64)
	token, err := s.issueToken(userID, 24*time.Hour)
	if err != nil {
		writeError(c, apperr.Internal(err, "issue token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleLogout is a no-op beyond acknowledging the request: tokens are
// stateless JWTs with no server-side session to invalidate.
func (s *Server) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (s *Server) handleMe(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.GetString("user_id"), 10, 64)
	user, err := s.Users.ByID(userID)
	if err != nil || user == nil {
		writeError(c, apperr.NotFound("user not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}
