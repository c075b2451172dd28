package database

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	kv, err := Open(ctx, &config.DatabaseConfig{Backend: BackendMemory})
	require.NoError(t, err)
	defer kv.Close()

	_, err = kv.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	require.NoError(t, kv.Set(ctx, "k", []byte("v2")))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.DatabaseConfig{Backend: "floppy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floppy")
	assert.Contains(t, err.Error(), BackendMemory)
}

func TestOpen_NilConfig(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.Error(t, err)
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[0] = 'Y'
	again, _ := kv.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}
