package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tphummel/fit-drive/internal/email"
	"github.com/tphummel/fit-drive/internal/storage"
)

type MockUserStore struct {
	mock.Mock
}

var _ storage.UserStore = (*MockUserStore)(nil)

func (m *MockUserStore) FindUser(ctx context.Context, address string) (*storage.User, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

func (m *MockUserStore) CreateUser(ctx context.Context, address string) (*storage.User, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

func (m *MockUserStore) DeleteUser(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *MockUserStore) SaveAuthorization(ctx context.Context, record storage.AuthorizationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type MockLoginTokenLedger struct {
	mock.Mock
}

var _ storage.LoginTokenLedger = (*MockLoginTokenLedger)(nil)

func (m *MockLoginTokenLedger) ConsumeLoginToken(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, id, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoginTokenLedger) CleanupExpiredLoginTokens(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

var _ email.Sender = (*MockSender)(nil)

func (m *MockSender) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
