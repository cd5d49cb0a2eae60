package jwt

import (
	"testing"
	"time"

	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	token, err := svc.GenerateAccessToken(42, member.RoleAdministrator, "fp-abc")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.MemberID)
	assert.Equal(t, member.RoleAdministrator, claims.Role)
	assert.Equal(t, "fp-abc", claims.Fingerprint)
	assert.Equal(t, TypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	token, err := svc.GenerateRefreshToken(42, member.RoleMember, "fp-abc")
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.MemberID)
	assert.Equal(t, TypeRefresh, claims.TokenType)
}

func TestTokenTypeSeparation(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	access, err := svc.GenerateAccessToken(1, member.RoleMember, "fp")
	require.NoError(t, err)
	challenge, err := svc.GenerateChallengeToken(1, "hash", member.ChannelEmail, 5*time.Minute)
	require.NoError(t, err)
	remember, err := svc.GenerateRememberToken(1, "fp", 24*time.Hour)
	require.NoError(t, err)

	// Refresh tokens are signed with a different secret entirely.
	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err)

	// Same-secret tokens of the wrong type are refused on type.
	_, err = svc.ValidateAccessToken(challenge)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = svc.ValidateAccessToken(remember)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = svc.ValidateChallengeToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = svc.ValidateRememberToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestChallengeTokenCarriesOTPContext(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	token, err := svc.GenerateChallengeToken(7, "otp-hash-value", member.ChannelSMS, 5*time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateChallengeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "otp-hash-value", claims.OTPHash)
	assert.Equal(t, member.ChannelSMS, claims.Channel)
}

func TestExpiredToken(t *testing.T) {
	cfg := testutils.GetTestConfig()
	cfg.JWT.AccessExpiry = -time.Minute
	svc := NewService(cfg, nil)

	token, err := svc.GenerateAccessToken(1, member.RoleMember, "fp")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTamperedSignature(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	other := testutils.GetTestConfig()
	other.JWT.AccessSecret = "a-completely-different-secret!!!"
	otherSvc := NewService(other, nil)

	token, err := otherSvc.GenerateAccessToken(1, member.RoleMember, "fp")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestMalformedToken(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	_, err := svc.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestDistinctJTIs(t *testing.T) {
	svc := NewService(testutils.GetTestConfig(), nil)

	first, err := svc.GenerateAccessToken(1, member.RoleMember, "fp")
	require.NoError(t, err)
	second, err := svc.GenerateAccessToken(1, member.RoleMember, "fp")
	require.NoError(t, err)

	a, err := svc.ValidateAccessToken(first)
	require.NoError(t, err)
	b, err := svc.ValidateAccessToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}
