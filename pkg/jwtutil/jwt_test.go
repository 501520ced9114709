package jwtutil

import (
	"testing"
	"time"

	"crm-service/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUtil() *JWTUtil {
	return New(
		config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1},
		config.PortalConfig{SessionHours: 2},
	)
}

func TestStaffTokenRoundTrip(t *testing.T) {
	j := newTestUtil()

	token, err := j.GenerateStaffToken("user-1", "staff@example.com", "admin")
	require.NoError(t, err)

	claims, err := j.ValidateStaffToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestPortalTokenNotAcceptedAsStaff(t *testing.T) {
	j := newTestUtil()

	token, err := j.GeneratePortalToken("client-1", "c@example.com")
	require.NoError(t, err)

	_, err = j.ValidateStaffToken(token)
	assert.Error(t, err)

	claims, err := j.ValidatePortalToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.ClientID)
}

func TestExpiredToken(t *testing.T) {
	j := newTestUtil()
	issued := time.Now().Add(-3 * time.Hour)
	j.now = func() time.Time { return issued }

	token, err := j.GeneratePortalToken("client-1", "c@example.com")
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.ValidatePortalToken(token)
	assert.Error(t, err)
}

func TestWrongKey(t *testing.T) {
	token, err := newTestUtil().GenerateStaffToken("user-1", "s@example.com", "staff")
	require.NoError(t, err)

	other := New(config.JWTConfig{SigningKey: "other", ExpirationHours: 1}, config.PortalConfig{})
	_, err = other.ValidateStaffToken(token)
	assert.Error(t, err)
}
