package stubserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"counselgo/client/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const identityKey = "identity"

// issueToken генерує JWT з анонімним ID та роллю.
func (s *Server) issueToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"role":   role,
		"exp":    time.Now().Add(72 * time.Hour).Unix(),
		"iss":    "counselgo-stub",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) parseToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, errors.New("invalid token or expired")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, errors.New("invalid claims")
	}
	userID, _ := claims["userId"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || role == "" {
		return models.Identity{}, errors.New("incomplete identity")
	}
	return models.Identity{UserID: userID, Role: role}, nil
}

// anonSession видає нову анонімну особу з JWT. Роль за замовчуванням client.
func (s *Server) anonSession(c *gin.Context) {
	role := c.DefaultQuery("role", models.RoleClient)
	switch role {
	case models.RoleClient, models.RoleCounselor, models.RoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	userID := uuid.New().String()
	token, err := s.issueToken(userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "userId": userID, "role": role})
}

// requireAuth дістає особу з Bearer-токена та кладе її в контекст запиту.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}
	identity, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func callerIdentity(c *gin.Context) models.Identity {
	identity, _ := c.Get(identityKey)
	id, _ := identity.(models.Identity)
	return id
}
