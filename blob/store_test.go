package blob_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/go-care-auth/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "avatars/u1.jpg", want: "avatars/u1.jpg"},
		{in: "/avatars/u1.jpg/", want: "avatars/u1.jpg"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "avatars/../secret", wantErr: true},
		{in: "avatars//u1", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := blob.CleanPath(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, blob.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAvatarPath(t *testing.T) {
	assert.Equal(t, "avatars/u1.png", blob.AvatarPath("u1", ".png"))
	assert.Equal(t, "avatars/u1.jpg", blob.AvatarPath("u1", ""))
}

func TestMemoryStoreUploadAndURL(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore("media", "https://cdn.test/")

	ref, err := store.Upload(ctx, "/avatars/u1.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "media", ref.Bucket)
	assert.Equal(t, "avatars/u1.png", ref.Path)
	assert.Equal(t, int64(9), ref.Size)
	assert.NotEmpty(t, ref.ETag)

	u, err := store.DownloadURL(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/media/avatars/u1.png", u)

	data, ct, ok := store.Get("avatars/u1.png")
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ct)
}

func TestMemoryStoreMissingObject(t *testing.T) {
	store := blob.NewMemoryStore("", "")
	_, err := store.DownloadURL(context.Background(), blob.Ref{Path: "nope"})
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}

func TestMinioStorePresignsWithoutNetwork(t *testing.T) {
	store, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		Bucket:    "avatars",
		Region:    "us-east-1",
		URLExpiry: 10 * time.Minute,
	})
	require.NoError(t, err)

	u, err := store.DownloadURL(context.Background(), blob.Ref{Path: "avatars/u1.png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/avatars/avatars/u1.png?"), u)
	assert.Contains(t, u, "X-Amz-Signature=")
}
