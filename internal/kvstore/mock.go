package kvstore

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (m *MockStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
func (m *MockStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}
func (m *MockStore) Del(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
func (m *MockStore) SAdd(ctx context.Context, key, member string) error {
	args := m.Called(ctx, key, member)
	return args.Error(0)
}
func (m *MockStore) SRem(ctx context.Context, key, member string) error {
	args := m.Called(ctx, key, member)
	return args.Error(0)
}
func (m *MockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	args := m.Called(ctx, key)
	if members, ok := args.Get(0).([]string); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Bool(1), args.Error(2)
}
