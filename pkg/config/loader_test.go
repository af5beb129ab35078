package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediakit/pkg/config"
)

type storageConfig struct {
	Bucket string `env:"MEDIAKIT_TEST_BUCKET,required"`
	Region string `env:"MEDIAKIT_TEST_REGION" envDefault:"us-east-1"`
	Sizes  []int  `env:"MEDIAKIT_TEST_SIZES" envSeparator:","`
}

type prefixedConfig struct {
	Name string `env:"NAME"`
}

// Tests below mutate the process environment and the shared cache, so they
// run sequentially.

func TestLoad(t *testing.T) {
	config.Reset()
	t.Setenv("MEDIAKIT_TEST_BUCKET", "media")

	var cfg storageConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "media", cfg.Bucket)
	assert.Equal(t, "us-east-1", cfg.Region)

	t.Run("cached", func(t *testing.T) {
		t.Setenv("MEDIAKIT_TEST_BUCKET", "changed")
		var again storageConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "media", again.Bucket)
	})

	t.Run("reset", func(t *testing.T) {
		t.Setenv("MEDIAKIT_TEST_BUCKET", "changed")
		config.Reset()
		var again storageConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "changed", again.Bucket)
	})
}

func TestLoad_MissingRequired(t *testing.T) {
	config.Reset()
	t.Setenv("MEDIAKIT_TEST_BUCKET", "")
	require.NoError(t, os.Unsetenv("MEDIAKIT_TEST_BUCKET"))

	var cfg storageConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	assert.ErrorIs(t, config.Load[storageConfig](nil), config.ErrNilPointer)
	assert.Panics(t, func() { config.MustLoad[storageConfig](nil) })
}

func TestLoad_Prefix(t *testing.T) {
	config.Reset()
	t.Setenv("PRIMARY_NAME", "one")
	t.Setenv("ARCHIVE_NAME", "two")

	var primary, archive prefixedConfig
	require.NoError(t, config.Load(&primary, config.WithPrefix("PRIMARY_")))
	require.NoError(t, config.Load(&archive, config.WithPrefix("ARCHIVE_")))
	assert.Equal(t, "one", primary.Name)
	assert.Equal(t, "two", archive.Name)
}

func TestLoadEnv(t *testing.T) {
	config.Reset()
	t.Setenv("MEDIAKIT_TEST_BUCKET", "from-process")
	t.Setenv("MEDIAKIT_TEST_SIZES", "")

	var before storageConfig
	require.NoError(t, config.Load(&before))
	assert.Equal(t, "from-process", before.Bucket)

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	var after storageConfig
	require.NoError(t, config.Load(&after))
	assert.Equal(t, "from-file", after.Bucket)
	assert.Equal(t, []int{1, 2, 3}, after.Sizes)

	err := config.LoadEnv("testdata/missing.env")
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	assert.NoError(t, config.LoadEnv())
}
