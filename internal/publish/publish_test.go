package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresConfig(t *testing.T) {
	cases := map[string]Config{
		"endpoint": {Bucket: "b", AccessKey: "a", SecretKey: "s"},
		"key":      {Endpoint: "localhost:9000", Bucket: "b"},
		"bucket":   {Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"},
	}
	for name, cfg := range cases {
		_, err := New(cfg, nil)
		assert.Error(t, err, name)
	}

	u, err := New(Config{Endpoint: "localhost:9000", Bucket: "builds", AccessKey: "a", SecretKey: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", u.cfg.Region)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "builds/0b1c/picker.exe", ObjectKey("0b1c", "/tmp/out/dist/picker.exe"))
}

func TestEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Endpoint: "s3.amazonaws.com"}.Enabled())
}
