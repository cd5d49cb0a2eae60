package twofa

import (
	"testing"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/jwt"
	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/services/pin"
	"github.com/clubops/memberauth/services/ratelimit"
	"github.com/clubops/memberauth/services/secrets"
	"github.com/clubops/memberauth/services/trusteddevice"
	"github.com/clubops/memberauth/testutils"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	svc     *Service
	db      *gorm.DB
	cfg     *config.Config
	jwt     *jwt.Service
	trusted *trusteddevice.Service
	mailer  *testutils.MockMailer
	sms     *testutils.MockSMSProvider
}

func setupEnv(t *testing.T) *testEnv {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &member.Member{}, &member.Organization{}, &audit.Event{}, &UsedCode{}, &trusteddevice.TrustedDevice{})

	auditSvc := audit.NewService(db, nil)
	codec, err := secrets.NewCodec(cfg)
	require.NoError(t, err)
	jwtSvc := jwt.NewService(cfg, nil)
	limiter := ratelimit.NewLimiter(cfg, ratelimit.NewMemoryStore(cfg.RateLimit.Window), auditSvc, nil)
	pinSvc := pin.NewService(cfg, db, nil, auditSvc, limiter)
	trustedSvc := trusteddevice.NewService(db, nil, auditSvc)
	mailer := &testutils.MockMailer{}
	smsProvider := &testutils.MockSMSProvider{}

	return &testEnv{
		svc:     NewService(cfg, db, nil, auditSvc, codec, jwtSvc, pinSvc, trustedSvc, mailer, smsProvider),
		db:      db,
		cfg:     cfg,
		jwt:     jwtSvc,
		trusted: trustedSvc,
		mailer:  mailer,
		sms:     smsProvider,
	}
}

func (e *testEnv) seedOrg(t *testing.T, mutate func(*member.Organization)) *member.Organization {
	org := testutils.NewOrganization("Test Club")
	if mutate != nil {
		mutate(org)
	}
	require.NoError(t, e.db.Create(org).Error)
	return org
}

func (e *testEnv) seedMember(t *testing.T, orgID uint, email string, mutate func(*member.Member)) *member.Member {
	m := testutils.NewMember(orgID, email)
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, e.db.Create(m).Error)
	return m
}

// enroll runs the full setup flow and returns the plaintext TOTP secret and
// recovery codes.
func (e *testEnv) enroll(t *testing.T, m *member.Member) (string, []string) {
	setup, err := e.svc.InitSetup(m)
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	codes, err := e.svc.ConfirmSetup(m, code)
	require.NoError(t, err)

	return setup.Secret, codes
}

func TestEnforced(t *testing.T) {
	env := setupEnv(t)

	enrolled := &member.Member{TwoFAEnabled: true, Role: member.RoleMember}
	notEnrolled := &member.Member{TwoFAEnabled: false, Role: member.RoleMember}

	t.Run("never for unenrolled members", func(t *testing.T) {
		env.cfg.TwoFA.Required = true
		defer func() { env.cfg.TwoFA.Required = false }()
		assert.False(t, env.svc.Enforced(nil, notEnrolled))
	})

	t.Run("global flag applies to everyone enrolled", func(t *testing.T) {
		env.cfg.TwoFA.Required = true
		defer func() { env.cfg.TwoFA.Required = false }()
		assert.True(t, env.svc.Enforced(nil, enrolled))
	})

	t.Run("no flags means optional", func(t *testing.T) {
		assert.False(t, env.svc.Enforced(&member.Organization{}, enrolled))
	})

	t.Run("tenant flag with empty role list applies to everyone", func(t *testing.T) {
		org := &member.Organization{TwoFARequired: true}
		assert.True(t, env.svc.Enforced(org, enrolled))
	})

	t.Run("tenant role list restricts enforcement", func(t *testing.T) {
		org := &member.Organization{TwoFARequired: true, TwoFARequiredRoles: "administrator,superuser"}
		assert.False(t, env.svc.Enforced(org, enrolled))

		admin := &member.Member{TwoFAEnabled: true, Role: member.RoleAdministrator}
		assert.True(t, env.svc.Enforced(org, admin))
	})
}

func TestEvaluatePINGate(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.PINEnabled = true })

	pinHash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)
	m := env.seedMember(t, org.ID, "a@example.com", func(mm *member.Member) {
		mm.PINHash = string(pinHash)
	})

	t.Run("missing PIN prompts for it", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{})
		require.NoError(t, err)
		assert.Equal(t, StatusPINRequired, eval.Status)
	})

	t.Run("wrong PIN fails", func(t *testing.T) {
		_, err := env.svc.Evaluate(org, m, EvaluateRequest{PIN: "0000"})
		assert.ErrorIs(t, err, pin.ErrInvalidPIN)
	})

	t.Run("correct PIN passes through", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{PIN: "1234"})
		require.NoError(t, err)
		assert.Equal(t, StatusOK, eval.Status)
	})

	t.Run("members without a PIN are not gated", func(t *testing.T) {
		noPin := env.seedMember(t, org.ID, "b@example.com", nil)
		eval, err := env.svc.Evaluate(org, noPin, EvaluateRequest{})
		require.NoError(t, err)
		assert.Equal(t, StatusOK, eval.Status)
	})
}

func TestEvaluateChallengeIssuance(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", nil)
	_, _ = env.enroll(t, m)

	eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, eval.Status)
	require.NotEmpty(t, eval.ChallengeToken)

	claims, err := env.jwt.ValidateChallengeToken(eval.ChallengeToken)
	require.NoError(t, err)
	assert.Equal(t, m.ID, claims.MemberID)
}

func TestEvaluateTrustedDeviceBypass(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) {
		o.TwoFARequired = true
		o.TrustedDevicesEnabled = true
	})
	m := env.seedMember(t, org.ID, "a@example.com", nil)
	_, _ = env.enroll(t, m)

	_, err := env.trusted.Trust(org.ID, m.ID, "fp-known", "Laptop", time.Hour)
	require.NoError(t, err)

	t.Run("registry match skips the challenge", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-known"})
		require.NoError(t, err)
		assert.Equal(t, StatusOK, eval.Status)
	})

	t.Run("unknown device is challenged", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-unknown"})
		require.NoError(t, err)
		assert.Equal(t, StatusChallengeRequired, eval.Status)
	})

	t.Run("registry disabled per tenant", func(t *testing.T) {
		org2 := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
		m2 := env.seedMember(t, org2.ID, "b@example.com", nil)
		_, _ = env.enroll(t, m2)
		_, err := env.trusted.Trust(org2.ID, m2.ID, "fp-known", "Laptop", time.Hour)
		require.NoError(t, err)

		eval, err := env.svc.Evaluate(org2, m2, EvaluateRequest{DeviceHash: "fp-known"})
		require.NoError(t, err)
		assert.Equal(t, StatusChallengeRequired, eval.Status)
	})
}

func TestEvaluateRememberTokenBypass(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", nil)
	_, _ = env.enroll(t, m)

	token, _, err := env.svc.MintRememberToken(org, m, "fp-1")
	require.NoError(t, err)

	t.Run("valid token on the minted device", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1", RememberToken: token})
		require.NoError(t, err)
		assert.Equal(t, StatusOK, eval.Status)
	})

	t.Run("token replayed from another device", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-2", RememberToken: token})
		require.NoError(t, err)
		assert.Equal(t, StatusChallengeRequired, eval.Status)
	})

	t.Run("token for another member", func(t *testing.T) {
		other := env.seedMember(t, org.ID, "b@example.com", nil)
		_, _ = env.enroll(t, other)

		eval, err := env.svc.Evaluate(org, other, EvaluateRequest{DeviceHash: "fp-1", RememberToken: token})
		require.NoError(t, err)
		assert.Equal(t, StatusChallengeRequired, eval.Status)
	})

	t.Run("garbage token falls back to challenge", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1", RememberToken: "garbage"})
		require.NoError(t, err)
		assert.Equal(t, StatusChallengeRequired, eval.Status)
	})
}

func TestSetupFlow(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, nil)
	m := env.seedMember(t, org.ID, "a@example.com", nil)

	setup, err := env.svc.InitSetup(m)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")

	t.Run("secret is stored encrypted", func(t *testing.T) {
		var fresh member.Member
		require.NoError(t, env.db.First(&fresh, m.ID).Error)
		assert.NotEmpty(t, fresh.TwoFASecret)
		assert.NotEqual(t, setup.Secret, fresh.TwoFASecret)
		assert.False(t, fresh.TwoFAEnabled)
	})

	t.Run("confirm with a wrong code", func(t *testing.T) {
		_, err := env.svc.ConfirmSetup(m, "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("confirm with a valid code", func(t *testing.T) {
		code, err := totp.GenerateCode(setup.Secret, time.Now())
		require.NoError(t, err)

		codes, err := env.svc.ConfirmSetup(m, code)
		require.NoError(t, err)
		assert.Len(t, codes, env.cfg.TwoFA.RecoveryCodeCount)
		for _, rc := range codes {
			assert.Regexp(t, `^[0-9A-F]{5}-[0-9A-F]{5}$`, rc)
		}

		var fresh member.Member
		require.NoError(t, env.db.First(&fresh, m.ID).Error)
		assert.True(t, fresh.TwoFAEnabled)
		assert.NotNil(t, fresh.TwoFAConfirmedAt)
		// Only hashes are stored.
		for _, rc := range codes {
			assert.NotContains(t, fresh.RecoveryCodeHashes, rc)
		}
	})

	t.Run("cannot start setup twice once enabled", func(t *testing.T) {
		_, err := env.svc.InitSetup(m)
		assert.ErrorIs(t, err, ErrAlreadyEnabled)
	})
}

func TestVerifyTOTP(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", nil)
	secret, _ := env.enroll(t, m)

	challenge := func(t *testing.T) string {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1"})
		require.NoError(t, err)
		require.Equal(t, StatusChallengeRequired, eval.Status)
		return eval.ChallengeToken
	}

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	t.Run("valid code verifies", func(t *testing.T) {
		verified, err := env.svc.Verify(challenge(t), code, "")
		require.NoError(t, err)
		assert.Equal(t, m.ID, verified.ID)
	})

	t.Run("replayed code is refused", func(t *testing.T) {
		_, err := env.svc.Verify(challenge(t), code, "")
		assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := env.svc.Verify(challenge(t), "000000", "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("garbage challenge token", func(t *testing.T) {
		_, err := env.svc.Verify("garbage", "000000", "")
		assert.ErrorIs(t, err, ErrChallengeInvalid)
	})

	t.Run("expired challenge token", func(t *testing.T) {
		expired, err := env.jwt.GenerateChallengeToken(m.ID, "", "", -time.Minute)
		require.NoError(t, err)

		_, err = env.svc.Verify(expired, "000000", "")
		assert.ErrorIs(t, err, ErrChallengeExpired)
	})
}

func TestVerifyRecoveryCode(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", nil)
	_, codes := env.enroll(t, m)

	eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1"})
	require.NoError(t, err)

	verified, err := env.svc.Verify(eval.ChallengeToken, codes[0], "")
	require.NoError(t, err)
	assert.Equal(t, m.ID, verified.ID)

	t.Run("recovery codes are single use", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1"})
		require.NoError(t, err)

		_, err = env.svc.Verify(eval.ChallengeToken, codes[0], "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("remaining codes still work", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1"})
		require.NoError(t, err)

		_, err = env.svc.Verify(eval.ChallengeToken, codes[1], "")
		assert.NoError(t, err)
	})
}

func TestEmailOTPFlow(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", func(mm *member.Member) {
		mm.TwoFAChannel = member.ChannelEmail
	})
	_, _ = env.enroll(t, m)

	env.mailer.On("SendOTPCode", "a@example.com", mock.Anything, mock.Anything).Return(nil)

	token, err := env.svc.InitOTP(m, member.ChannelEmail)
	require.NoError(t, err)
	env.mailer.AssertCalled(t, "SendOTPCode", "a@example.com", mock.Anything, mock.Anything)

	code := env.mailer.LastCode()
	require.Len(t, code, 6)

	t.Run("wrong code", func(t *testing.T) {
		_, err := env.svc.Verify(token, "000000", member.ChannelEmail)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("dispatched code verifies", func(t *testing.T) {
		verified, err := env.svc.Verify(token, code, member.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, m.ID, verified.ID)
	})

	t.Run("TOTP channel rejects dispatch", func(t *testing.T) {
		_, err := env.svc.InitOTP(m, member.ChannelTOTP)
		assert.ErrorIs(t, err, ErrUnsupportedChannel)
	})

	t.Run("empty channel falls back to the stored preference", func(t *testing.T) {
		_, err := env.svc.InitOTP(m, "")
		assert.NoError(t, err)
	})
}

func TestUnsupportedChannel(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", nil)
	_, _ = env.enroll(t, m)

	t.Run("dispatch to an unknown channel", func(t *testing.T) {
		_, err := env.svc.InitOTP(m, "carrier-pigeon")
		assert.ErrorIs(t, err, ErrUnsupportedChannel)
	})

	t.Run("dispatch with no channel and no stored preference", func(t *testing.T) {
		// enroll defaults the stored channel to TOTP, which has no dispatch.
		_, err := env.svc.InitOTP(m, "")
		assert.ErrorIs(t, err, ErrUnsupportedChannel)
	})

	t.Run("verify against an unknown channel", func(t *testing.T) {
		eval, err := env.svc.Evaluate(org, m, EvaluateRequest{DeviceHash: "fp-1"})
		require.NoError(t, err)

		_, err = env.svc.Verify(eval.ChallengeToken, "000000", "carrier-pigeon")
		assert.ErrorIs(t, err, ErrUnsupportedChannel)
	})
}

func TestSMSOTPFlow(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, func(o *member.Organization) { o.TwoFARequired = true })
	m := env.seedMember(t, org.ID, "a@example.com", func(mm *member.Member) {
		mm.PhoneNumber = "+15551234567"
		mm.TwoFAChannel = member.ChannelSMS
	})
	_, _ = env.enroll(t, m)

	env.sms.On("SendOTPCode", "+15551234567", mock.Anything).Return(nil)

	token, err := env.svc.InitOTP(m, member.ChannelSMS)
	require.NoError(t, err)

	code := env.sms.LastCode()
	require.Len(t, code, 6)

	verified, err := env.svc.Verify(token, code, member.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, m.ID, verified.ID)
}

func TestDisable(t *testing.T) {
	env := setupEnv(t)
	org := env.seedOrg(t, nil)

	t.Run("with a valid TOTP code", func(t *testing.T) {
		m := env.seedMember(t, org.ID, "a@example.com", nil)
		secret, _ := env.enroll(t, m)

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		require.NoError(t, env.svc.Disable(m, code))

		var fresh member.Member
		require.NoError(t, env.db.First(&fresh, m.ID).Error)
		assert.False(t, fresh.TwoFAEnabled)
		assert.Empty(t, fresh.TwoFASecret)
		assert.Empty(t, fresh.RecoveryCodeHashes)
	})

	t.Run("with a recovery code", func(t *testing.T) {
		m := env.seedMember(t, org.ID, "b@example.com", nil)
		_, codes := env.enroll(t, m)

		require.NoError(t, env.svc.Disable(m, codes[0]))
	})

	t.Run("with a wrong code", func(t *testing.T) {
		m := env.seedMember(t, org.ID, "c@example.com", nil)
		_, _ = env.enroll(t, m)

		assert.ErrorIs(t, env.svc.Disable(m, "000000"), ErrInvalidCode)
	})

	t.Run("not enrolled", func(t *testing.T) {
		m := env.seedMember(t, org.ID, "d@example.com", nil)
		assert.ErrorIs(t, env.svc.Disable(m, "000000"), ErrNotEnrolled)
	})
}

func TestMintRememberToken(t *testing.T) {
	env := setupEnv(t)

	m := &member.Member{ID: 1}

	t.Run("default lifetime", func(t *testing.T) {
		_, lifetime, err := env.svc.MintRememberToken(nil, m, "fp-1")
		require.NoError(t, err)
		assert.Equal(t, time.Duration(env.cfg.TwoFA.RememberDeviceDays)*24*time.Hour, lifetime)
	})

	t.Run("tenant override", func(t *testing.T) {
		org := &member.Organization{RememberDeviceDays: 7}
		_, lifetime, err := env.svc.MintRememberToken(org, m, "fp-1")
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, lifetime)
	})
}

func TestOTPHashing(t *testing.T) {
	t.Run("salted per channel and member", func(t *testing.T) {
		a := otpHash(member.ChannelEmail, 1, "123456")
		b := otpHash(member.ChannelSMS, 1, "123456")
		c := otpHash(member.ChannelEmail, 2, "123456")

		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})

	t.Run("constant time compare", func(t *testing.T) {
		h := otpHash(member.ChannelEmail, 1, "123456")
		assert.True(t, otpHashEqual(h, otpHash(member.ChannelEmail, 1, "123456")))
		assert.False(t, otpHashEqual(h, otpHash(member.ChannelEmail, 1, "654321")))
	})
}

func TestGenerateRecoveryCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rc, err := generateRecoveryCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9A-F]{5}-[0-9A-F]{5}$`, rc)
		assert.False(t, seen[rc], "recovery codes must not repeat")
		seen[rc] = true
	}
}
