package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"crm-service/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// Audiences separate staff bearer tokens from portal session tokens so one
// cannot be replayed as the other.
const (
	AudienceStaff  = "crm-staff"
	AudiencePortal = "crm-portal"
)

// StaffClaims identifies a staff user
type StaffClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// PortalClaims identifies the client owning a portal session
type PortalClaims struct {
	ClientID string `json:"client_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// JWTUtil signs and validates tokens with one HMAC key
type JWTUtil struct {
	signingKey []byte
	staffTTL   time.Duration
	portalTTL  time.Duration
	now        func() time.Time
}

// New creates a JWTUtil from configuration
func New(jwtCfg config.JWTConfig, portalCfg config.PortalConfig) *JWTUtil {
	return &JWTUtil{
		signingKey: []byte(jwtCfg.SigningKey),
		staffTTL:   time.Duration(jwtCfg.ExpirationHours) * time.Hour,
		portalTTL:  time.Duration(portalCfg.SessionHours) * time.Hour,
		now:        time.Now,
	}
}

// PortalTTL returns how long a portal session lasts
func (j *JWTUtil) PortalTTL() time.Duration {
	return j.portalTTL
}

// GenerateStaffToken creates a bearer token for a staff user
func (j *JWTUtil) GenerateStaffToken(userID, email, role string) (string, error) {
	claims := &StaffClaims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		RegisteredClaims: j.registered(userID, AudienceStaff, j.staffTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.signingKey)
}

// GeneratePortalToken creates a session token for a client portal login
func (j *JWTUtil) GeneratePortalToken(clientID, email string) (string, error) {
	claims := &PortalClaims{
		ClientID:         clientID,
		Email:            email,
		RegisteredClaims: j.registered(clientID, AudiencePortal, j.portalTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.signingKey)
}

func (j *JWTUtil) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

// ValidateStaffToken validates the token and returns the staff claims
func (j *JWTUtil) ValidateStaffToken(tokenString string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	if err := j.parse(tokenString, claims, AudienceStaff); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// ValidatePortalToken validates the token and returns the portal claims
func (j *JWTUtil) ValidatePortalToken(tokenString string) (*PortalClaims, error) {
	claims := &PortalClaims{}
	if err := j.parse(tokenString, claims, AudiencePortal); err != nil {
		return nil, err
	}
	if claims.ClientID == "" {
		return nil, errors.New("token has no client")
	}
	return claims, nil
}

func (j *JWTUtil) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return j.signingKey, nil
		},
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
