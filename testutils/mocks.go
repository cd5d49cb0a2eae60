package testutils

import (
	"time"

	"github.com/clubops/memberauth/services/member"
	"github.com/stretchr/testify/mock"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTPCode(to, code string, expiry time.Duration) error {
	args := m.Called(to, code, expiry)
	return args.Error(0)
}

// LastCode returns the code from the most recent SendOTPCode call, for tests
// that need to submit the dispatched value.
func (m *MockMailer) LastCode() string {
	if len(m.Calls) == 0 {
		return ""
	}
	last := m.Calls[len(m.Calls)-1]
	return last.Arguments.String(1)
}

type MockSMSProvider struct {
	mock.Mock
}

func (m *MockSMSProvider) SendOTPCode(phone, code string) error {
	args := m.Called(phone, code)
	return args.Error(0)
}

func (m *MockSMSProvider) LastCode() string {
	if len(m.Calls) == 0 {
		return ""
	}
	last := m.Calls[len(m.Calls)-1]
	return last.Arguments.String(1)
}

type MockMembershipValidator struct {
	mock.Mock
}

func (m *MockMembershipValidator) Validate(mem *member.Member) error {
	args := m.Called(mem)
	return args.Error(0)
}
