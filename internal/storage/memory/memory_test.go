package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

func TestStorage_UploadAndGetURL(t *testing.T) {
	s := New("http://localhost:8080/media")
	ctx := context.Background()

	key, err := s.Upload(ctx, "listings/lst-1/0.jpg", "image/jpeg", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	assert.Equal(t, "listings/lst-1/0.jpg", key)

	url, err := s.GetURL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/listings/lst-1/0.jpg", url)

	data, contentType, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "jpegdata", string(data))
	assert.Equal(t, "image/jpeg", contentType)
}

func TestStorage_GetURL_NotFound(t *testing.T) {
	s := New("http://localhost:8080/media")

	_, err := s.GetURL(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStorage_Delete(t *testing.T) {
	s := New("http://localhost:8080/media")
	ctx := context.Background()

	_, err := s.Upload(ctx, "k", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.GetURL(ctx, "k")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
