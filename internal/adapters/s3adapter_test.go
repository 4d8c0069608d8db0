package adapters

import (
	"context"
	"errors"
	"testing"

	"ritual/internal/core/ports"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPIError is a hand-rolled smithy.APIError, matching the teacher's
// style of func-field/struct mocks rather than a generated one, so
// classifyError's type-switch on smithy.APIError and ErrorFault can be
// driven directly from a test without a real AWS round trip.
type fakeAPIError struct {
	code    string
	message string
	fault   smithy.ErrorFault
}

func (e *fakeAPIError) Error() string                 { return e.code + ": " + e.message }
func (e *fakeAPIError) ErrorCode() string              { return e.code }
func (e *fakeAPIError) ErrorMessage() string           { return e.message }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return e.fault }

func serviceUnavailable() error {
	return &fakeAPIError{code: "ServiceUnavailable", message: "slow down", fault: smithy.FaultServer}
}

func expiredToken() error {
	return &fakeAPIError{code: ExpiredTokenErrorCode, message: "token expired", fault: smithy.FaultClient}
}

func accessDenied() error {
	return &fakeAPIError{code: "AccessDenied", message: "nope", fault: smithy.FaultClient}
}

// fakeS3Client is a hand-rolled mock of the adapter's S3Client interface.
// Only Head/List are exercised by these tests; Get's and Put's retry/renewal
// behavior is identical (they flow through the same withClientRetry/
// withRenewal helpers), and the multipart-only methods are never called
// by a Head/List test, so they return unimplemented.
type fakeS3Client struct {
	headFunc func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	getFunc  func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	listFunc func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, params, optFns...)
	}
	return nil, errors.New("unexpected GetObject call")
}

func (f *fakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("unimplemented")
}

func (f *fakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headFunc != nil {
		return f.headFunc(ctx, params, optFns...)
	}
	return nil, errors.New("unexpected HeadObject call")
}

func (f *fakeS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listFunc != nil {
		return f.listFunc(ctx, params, optFns...)
	}
	return nil, errors.New("unexpected ListObjectsV2 call")
}

func (f *fakeS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unimplemented")
}

func (f *fakeS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unimplemented")
}

func (f *fakeS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unimplemented")
}

func (f *fakeS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("unimplemented")
}

var _ S3Client = (*fakeS3Client)(nil)

func newTestAdapter(client S3Client, credSource ports.CredentialSource, buildClientFn func(ctx context.Context, creds ports.Credentials, region string) (*boundClient, error)) *S3Adapter {
	a := &S3Adapter{
		bucket:        "bucket",
		region:        "us-east-1",
		credSource:    credSource,
		logger:        NewNopLogger(),
		buildClientFn: buildClientFn,
	}
	a.current.Store(&boundClient{client: client})
	return a
}

func TestS3Adapter_HeadRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	fake := &fakeS3Client{
		headFunc: func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			calls++
			if calls < 3 {
				return nil, serviceUnavailable()
			}
			return &s3.HeadObjectOutput{}, nil
		},
	}

	a := newTestAdapter(fake, nil, nil)
	info, err := a.Head(context.Background(), "", "key")
	require.NoError(t, err)
	assert.False(t, info.NotFound)
	assert.Equal(t, 3, calls)
}

func TestS3Adapter_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	fake := &fakeS3Client{
		headFunc: func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			calls++
			return nil, accessDenied()
		},
	}

	a := newTestAdapter(fake, nil, nil)
	_, err := a.Head(context.Background(), "", "key")
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrKindPermanent, ce.Kind)
}

func TestS3Adapter_ExpiredTokenRenewsWithoutConsumingRetryBudget(t *testing.T) {
	calls := 0
	renewed := &fakeS3Client{
		listFunc: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			return &s3.ListObjectsV2Output{}, nil
		},
	}
	first := &fakeS3Client{
		listFunc: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			return nil, expiredToken()
		},
	}

	var renewCalls int
	credSource := credSourceFunc(func(ctx context.Context) (ports.Credentials, error) {
		renewCalls++
		return ports.Credentials{AWSID: "new-id"}, nil
	})

	var rebuildCalls int
	buildClientFn := func(ctx context.Context, creds ports.Credentials, region string) (*boundClient, error) {
		rebuildCalls++
		assert.Equal(t, "new-id", creds.AWSID)
		return &boundClient{client: renewed}, nil
	}

	a := newTestAdapter(first, credSource, buildClientFn)
	_, err := a.List(context.Background(), "", "prefix")
	require.NoError(t, err)

	assert.Equal(t, 1, renewCalls)
	assert.Equal(t, 1, rebuildCalls)
	// One failing call against the expired client, one succeeding call
	// against the renewed client: renewal swaps the client and retries
	// from outside the counted client-side retry loop, so this never
	// touches config.ClientSideMaxRetries.
	assert.Equal(t, 2, calls)
}

func TestS3Adapter_ExpiredTokenWithoutCredentialSourceFails(t *testing.T) {
	fake := &fakeS3Client{
		listFunc: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return nil, expiredToken()
		},
	}

	a := newTestAdapter(fake, nil, nil)
	_, err := a.List(context.Background(), "", "prefix")
	require.Error(t, err)
}

// credSourceFunc adapts a function literal to ports.CredentialSource.
type credSourceFunc func(ctx context.Context) (ports.Credentials, error)

func (f credSourceFunc) Credentials(ctx context.Context) (ports.Credentials, error) {
	return f(ctx)
}
