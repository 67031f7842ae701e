package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeReply   = "mrf_reply"
)

// JWT configuration
var (
	JWTSecret  []byte
	AccessTTL  = 2 * time.Hour
	RefreshTTL = 7 * 24 * time.Hour
	LinkTTL    = 72 * time.Hour
)

var (
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenType     = errors.New("token has the wrong type")
	ErrNotActive     = errors.New("employee is not active")
	ErrNoCredentials = errors.New("no bearer credential")
)

// InitializeTokens loads the signing secret and token lifetimes from settings
func InitializeTokens() {
	secret := settings.Get("JWT.SECRET").String()
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		log.Warning("JWT_SECRET not set, using development key. Change this in production!")
		secret = "hrdesk-development-secret"
	}
	JWTSecret = []byte(secret)

	if ttl, err := settings.Get("JWT.ACCESS_TTL", "2h").Duration(); err == nil && ttl > 0 {
		AccessTTL = ttl
	}
	if ttl, err := settings.Get("JWT.REFRESH_TTL", "168h").Duration(); err == nil && ttl > 0 {
		RefreshTTL = ttl
	}
	if ttl, err := settings.Get("JWT.LINK_TTL", "72h").Duration(); err == nil && ttl > 0 {
		LinkTTL = ttl
	}
	log.Debug("JWT initialized: access=%s refresh=%s link=%s", AccessTTL, RefreshTTL, LinkTTL)
}

// Claims carries the identity decoded from a bearer token
type Claims struct {
	EmployeeID string `json:"emp_id"`
	Position   string `json:"emp_pos,omitempty"`
	Name       string `json:"emp_name,omitempty"`
	Department string `json:"emp_dept,omitempty"`
	Role       Role   `json:"role,omitempty"`
	Type       string `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		EmployeeID: c.EmployeeID,
		Name:       c.Name,
		Position:   c.Position,
		Department: c.Department,
		Role:       c.Role,
	}
}

// ReplyLinkClaims authorizes a functional head to answer one requisition query
type ReplyLinkClaims struct {
	RequisitionID uint   `json:"rid"`
	EmployeeID    string `json:"emp_id"`
	Type          string `json:"typ"`
	jwt.RegisteredClaims
}

func sign(claims jwt.Claims) (string, error) {
	if len(JWTSecret) == 0 {
		return "", fmt.Errorf("jwt secret is not initialized")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(JWTSecret)
}

func registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	var now = time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return JWTSecret, nil
}

// GenerateAccessToken issues a short-lived token carrying the employee identity
func (e *Employee) GenerateAccessToken() (string, error) {
	return sign(Claims{
		EmployeeID:       e.EmployeeID,
		Position:         e.Position,
		Name:             e.Name,
		Department:       e.Department,
		Role:             e.Role,
		Type:             tokenTypeAccess,
		RegisteredClaims: registered(e.EmployeeID, AccessTTL),
	})
}

func (e *Employee) GenerateRefreshToken() (string, error) {
	return sign(Claims{
		EmployeeID:       e.EmployeeID,
		Type:             tokenTypeRefresh,
		RegisteredClaims: registered(e.EmployeeID, RefreshTTL),
	})
}

// ParseToken verifies signature, expiry and token type
func ParseToken(tokenString, tokenType string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrNoCredentials
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.EmployeeID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Type != tokenType {
		return nil, ErrTokenType
	}
	return claims, nil
}

// ParseBearer accepts an Authorization header value ("Bearer <jwt>")
func ParseBearer(header string) (*Claims, error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, ErrNoCredentials
	}
	return ParseToken(strings.TrimPrefix(header, "Bearer "), tokenTypeAccess)
}

// EmployeeFromToken resolves an Authorization header to an active employee.
// The role is re-read from the directory so that role changes take effect
// without waiting for the token to expire.
func EmployeeFromToken(header string) (*Employee, error) {
	claims, err := ParseBearer(header)
	if err != nil {
		return nil, err
	}
	var employee Employee
	if err := db.Where("employee_id = ?", claims.EmployeeID).First(&employee).Error; err != nil {
		return nil, err
	}
	if !employee.Active() {
		return nil, ErrNotActive
	}
	return &employee, nil
}

// SignReplyLink issues the token embedded in query emails
func SignReplyLink(requisitionID uint, employeeID string) (string, error) {
	return sign(ReplyLinkClaims{
		RequisitionID:    requisitionID,
		EmployeeID:       employeeID,
		Type:             tokenTypeReply,
		RegisteredClaims: registered(employeeID, LinkTTL),
	})
}

// VerifyReplyLink returns the requisition and employee a reply link was issued for
func VerifyReplyLink(tokenString string) (uint, string, error) {
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), &ReplyLinkClaims{}, keyFunc)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*ReplyLinkClaims)
	if !ok || !token.Valid || claims.RequisitionID == 0 || claims.EmployeeID == "" {
		return 0, "", ErrTokenInvalid
	}
	if claims.Type != tokenTypeReply {
		return 0, "", ErrTokenType
	}
	return claims.RequisitionID, claims.EmployeeID, nil
}
