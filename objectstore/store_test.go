package objectstore_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sagarc03/gallery"
	"github.com/sagarc03/gallery/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testBucket = "gallery-test"

func newTestStore(t *testing.T) (*objectstore.Store, *fakeS3) {
	t.Helper()

	fake, srv := newFakeS3(t, testBucket)
	store, err := objectstore.New(newTestClient(srv), testBucket)
	require.NoError(t, err)

	return store, fake
}

func newTestClient(srv *httptest.Server) *s3.Client {
	cfg := aws.Config{
		Region:           "us-east-1",
		Credentials:      credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		HTTPClient:       srv.Client(),
		RetryMaxAttempts: 1,
	}
	return objectstore.NewClient(cfg, objectstore.ClientOptions{Endpoint: srv.URL, UsePathStyle: true})
}

func TestNew(t *testing.T) {
	_, err := objectstore.New(nil, "bucket")
	assert.Error(t, err)

	_, err = objectstore.New(&MockS3{}, "")
	assert.Error(t, err)
}

func TestStore_Put(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	content := []byte("\x89PNG fake image")
	err := store.Put(ctx, "user-upload/1-abc-cat.png", bytes.NewReader(content), int64(len(content)), "image/png")
	require.NoError(t, err)

	obj, ok := fake.get("user-upload/1-abc-cat.png")
	require.True(t, ok)
	assert.Equal(t, content, obj.body)
	assert.Equal(t, "image/png", obj.contentType)
}

func TestStore_Put_InvalidKey(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Put(context.Background(), "../escape", bytes.NewReader(nil), 0, "image/png")
	assert.ErrorIs(t, err, gallery.ErrInvalidInput)
}

func TestStore_Delete(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	t.Run("existing object", func(t *testing.T) {
		fake.put("user-upload/gone.png", []byte("x"), time.Now())

		require.NoError(t, store.Delete(ctx, "user-upload/gone.png"))

		_, ok := fake.get("user-upload/gone.png")
		assert.False(t, ok)
	})

	t.Run("missing object", func(t *testing.T) {
		err := store.Delete(ctx, "user-upload/never-was.png")
		assert.ErrorIs(t, err, gallery.ErrNotFound)
	})
}

func TestStore_List(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		fake.put(fmt.Sprintf("user-upload/%d.png", i), []byte("data"), modified)
	}
	fake.put("other/skip.png", []byte("data"), modified)

	t.Run("single page", func(t *testing.T) {
		objects, err := store.List(ctx, "user-upload/")
		require.NoError(t, err)

		require.Len(t, objects, 5)
		for _, o := range objects {
			assert.Equal(t, int64(4), o.Size)
			assert.True(t, modified.Equal(o.LastModified))
		}
	})

	t.Run("follows continuation tokens", func(t *testing.T) {
		fake.setPageSize(2)

		objects, err := store.List(ctx, "user-upload/")
		require.NoError(t, err)

		keys := make([]string, 0, len(objects))
		for _, o := range objects {
			keys = append(keys, o.Key)
		}
		sort.Strings(keys)
		assert.Equal(t, []string{
			"user-upload/0.png", "user-upload/1.png", "user-upload/2.png",
			"user-upload/3.png", "user-upload/4.png",
		}, keys)
	})

	t.Run("empty prefix match", func(t *testing.T) {
		objects, err := store.List(ctx, "nothing/")
		require.NoError(t, err)
		assert.NotNil(t, objects)
		assert.Empty(t, objects)
	})
}

// MockS3 is a testify mock of the S3 calls the store makes.
type MockS3 struct {
	mock.Mock
}

func (m *MockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func TestStore_Put_SizeAndErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown size omits content length", func(t *testing.T) {
		client := &MockS3{}
		client.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return in.ContentLength == nil && aws.ToString(in.Bucket) == "b"
		})).Return(&s3.PutObjectOutput{}, nil)

		store, err := objectstore.New(client, "b")
		require.NoError(t, err)

		assert.NoError(t, store.Put(ctx, "k.png", bytes.NewReader([]byte("x")), -1, "image/png"))
		client.AssertExpectations(t)
	})

	t.Run("client error is wrapped", func(t *testing.T) {
		client := &MockS3{}
		client.On("PutObject", ctx, mock.Anything).Return(nil, errors.New("access denied"))

		store, err := objectstore.New(client, "b")
		require.NoError(t, err)

		err = store.Put(ctx, "k.png", bytes.NewReader([]byte("x")), 1, "image/png")
		assert.ErrorContains(t, err, "access denied")
	})
}

func TestStore_Delete_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("typed not found from head", func(t *testing.T) {
		client := &MockS3{}
		client.On("HeadObject", ctx, mock.Anything).Return(nil, &types.NotFound{})

		store, err := objectstore.New(client, "b")
		require.NoError(t, err)

		assert.ErrorIs(t, store.Delete(ctx, "k.png"), gallery.ErrNotFound)
		client.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
	})

	t.Run("head failure is not masked", func(t *testing.T) {
		client := &MockS3{}
		client.On("HeadObject", ctx, mock.Anything).Return(nil, errors.New("connection reset"))

		store, err := objectstore.New(client, "b")
		require.NoError(t, err)

		err = store.Delete(ctx, "k.png")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, gallery.ErrNotFound)
	})
}
