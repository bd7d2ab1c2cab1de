package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayValueDedupes(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	v, err := UUIDArray{a, b, a}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{"+a.String()+","+b.String()+"}", v)

	empty, err := UUIDArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}

func TestUUIDArrayScan(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	var got UUIDArray
	require.NoError(t, got.Scan([]byte(`{"`+a.String()+`", `+b.String()+`}`)))
	assert.Equal(t, UUIDArray{a, b}, got)
	assert.True(t, got.Contains(b))
	assert.False(t, got.Contains(uuid.New()))

	require.NoError(t, got.Scan(nil))
	assert.Empty(t, got)
	require.NoError(t, got.Scan("{}"))
	assert.Empty(t, got)
}

func TestUUIDArrayScanRejectsBadInput(t *testing.T) {
	var got UUIDArray
	assert.Error(t, got.Scan("{NULL}"))
	assert.Error(t, got.Scan("{not-a-uuid}"))
	assert.Error(t, got.Scan(uuid.NewString()))
	assert.Error(t, got.Scan(42))
}
