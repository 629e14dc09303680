package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/krun/pkg/config"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := config.New()

	assert.Equal(t, "krun.jacobcolvin.com/v1beta1", c.APIVersion)
	assert.Equal(t, "Configuration", c.Kind)
	assert.Equal(t, "kubectl", c.Kubectl)
	assert.Equal(t, "krun.log", c.LogFile)

	ttl, err := c.TTL()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, ttl)
}

func TestLoadBytes(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		check   func(t *testing.T, c *config.Config)
		data    string
		wantErr string
	}{
		"minimal": {
			data: `
apiVersion: krun.jacobcolvin.com/v1beta1
kind: Configuration
`,
			check: func(t *testing.T, c *config.Config) {
				t.Helper()
				assert.Equal(t, "kubectl", c.Kubectl)
				assert.Equal(t, "12h", c.CacheTTL)
			},
		},
		"overrides": {
			data: `
apiVersion: krun.jacobcolvin.com/v1beta1
kind: Configuration
kubectl: oc
verbose: true
logFile: /tmp/krun-test.log
cacheTTL: 1h
`,
			check: func(t *testing.T, c *config.Config) {
				t.Helper()
				assert.Equal(t, "oc", c.Kubectl)
				assert.True(t, c.Verbose)
				assert.Equal(t, "/tmp/krun-test.log", c.LogFile)

				ttl, err := c.TTL()
				require.NoError(t, err)
				assert.Equal(t, time.Hour, ttl)
			},
		},
		"missing api version": {
			data:    `kind: Configuration`,
			wantErr: "validate config",
		},
		"unknown field": {
			data: `
apiVersion: krun.jacobcolvin.com/v1beta1
kind: Configuration
unknownField: value
`,
			wantErr: "validate config",
		},
		"wrong type": {
			data: `
apiVersion: krun.jacobcolvin.com/v1beta1
kind: Configuration
verbose: "yes"
`,
			wantErr: "validate config",
		},
		"invalid yaml": {
			data:    "kind: [unclosed",
			wantErr: "unmarshal config",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := config.LoadBytes([]byte(tc.data))

			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)

				return
			}

			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	c, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "kubectl", c.Kubectl)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("apiVersion: krun.jacobcolvin.com/v1beta1\nkind: Configuration\nkubectl: oc\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "oc", c.Kubectl)
}

func TestConfig_TTLInvalid(t *testing.T) {
	t.Parallel()

	c := config.New()
	c.CacheTTL = "not-a-duration"

	_, err := c.TTL()
	require.Error(t, err)
}
