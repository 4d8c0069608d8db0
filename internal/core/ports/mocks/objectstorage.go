package mocks

import (
	"context"

	"ritual/internal/core/ports"
)

// MockObjectStorageClient is a func-field mock of ports.ObjectStorageClient,
// following the teacher's hand-rolled mock style (see MockStorageRepository).
type MockObjectStorageClient struct {
	PutFunc      func(ctx context.Context, req ports.PutRequest) (ports.PutResult, error)
	GetFunc      func(ctx context.Context, req ports.GetRequest) (ports.GetResult, error)
	ListFunc     func(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error)
	HeadFunc     func(ctx context.Context, bucket, key string) (ports.ObjectInfo, error)
	ShutdownFunc func() error

	PutCalls int
}

// NewMockObjectStorageClient creates a new mock object storage client.
func NewMockObjectStorageClient() *MockObjectStorageClient {
	return &MockObjectStorageClient{}
}

func (m *MockObjectStorageClient) Put(ctx context.Context, req ports.PutRequest) (ports.PutResult, error) {
	m.PutCalls++
	if m.PutFunc != nil {
		return m.PutFunc(ctx, req)
	}
	return ports.PutResult{}, nil
}

func (m *MockObjectStorageClient) Get(ctx context.Context, req ports.GetRequest) (ports.GetResult, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, req)
	}
	return ports.GetResult{}, nil
}

func (m *MockObjectStorageClient) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, bucket, prefix)
	}
	return nil, nil
}

func (m *MockObjectStorageClient) Head(ctx context.Context, bucket, key string) (ports.ObjectInfo, error) {
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx, bucket, key)
	}
	return ports.ObjectInfo{NotFound: true}, nil
}

func (m *MockObjectStorageClient) Shutdown() error {
	if m.ShutdownFunc != nil {
		return m.ShutdownFunc()
	}
	return nil
}

var _ ports.ObjectStorageClient = (*MockObjectStorageClient)(nil)
