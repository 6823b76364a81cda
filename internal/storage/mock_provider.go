// Package storage provides the freezer.FileStore implementations a frozen
// tree can land on: the local filesystem (default), an in-memory map for
// tests, and a Google Cloud Storage bucket for bucket-hosted sites.
package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of freezer.FileStore for wiring tests.
type MockStore struct {
	mock.Mock
}

// PutObject is the mock implementation of the PutObject method.
func (m *MockStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
