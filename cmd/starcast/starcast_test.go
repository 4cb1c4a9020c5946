package main_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	starcast "github.com/starcasthq/starcast/cmd/starcast"
	"github.com/starcasthq/starcast/node"
	"github.com/starcasthq/starcast/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempCfgFile(t *testing.T, cfg string) string {
	t.Helper()
	fileN := filepath.Join(t.TempDir(), "starcast.yaml")
	require.NoError(t, os.WriteFile(fileN, []byte(cfg), 0o600))
	return fileN
}

// The purpose of these tests is to ensure the precedence of our config
// values is respected. Since viper offers this feature, it would be
// redundant to enumerate all combinations. Thus, only a select few are
// tested for sanity.
func TestConfigPrecedence(t *testing.T) {
	defaultLogLevel := utils.INFO
	defaultHTTPPort := uint16(8080)
	defaultColour := true
	defaultMetrics := false
	defaultMetricsPort := uint16(9090)
	defaultPprof := false
	defaultPprofPort := uint16(9080)

	tests := map[string]struct {
		cfgFileContents string
		expectErr       bool
		inputArgs       []string
		expectedConfig  *node.Config
	}{
		"default config with no flags": {
			inputArgs: []string{""},
			expectedConfig: &node.Config{
				LogLevel:    defaultLogLevel,
				Colour:      defaultColour,
				HTTPPort:    defaultHTTPPort,
				Metrics:     defaultMetrics,
				MetricsPort: defaultMetricsPort,
				Pprof:       defaultPprof,
				PprofPort:   defaultPprofPort,
			},
		},
		"config file doesn't exist": {
			inputArgs: []string{"--config", "config-file-test.yaml"},
			expectErr: true,
		},
		"config file with settings and no flags": {
			cfgFileContents: `log-level: debug
http-port: 4576
db-path: /home/.starcast
directory-url: "https://directory.internal:5673"
metrics: true
`,
			expectedConfig: &node.Config{
				LogLevel:     utils.DEBUG,
				Colour:       defaultColour,
				HTTPPort:     4576,
				DatabasePath: "/home/.starcast",
				DirectoryURL: "https://directory.internal:5673",
				Metrics:      true,
				MetricsPort:  defaultMetricsPort,
				Pprof:        defaultPprof,
				PprofPort:    defaultPprofPort,
			},
		},
		"flags without config file": {
			inputArgs: []string{
				"--log-level", "warn", "--http-port", "4576",
				"--db-path", "/home/.starcast", "--pprof",
			},
			expectedConfig: &node.Config{
				LogLevel:     utils.WARN,
				Colour:       defaultColour,
				HTTPPort:     4576,
				DatabasePath: "/home/.starcast",
				Metrics:      defaultMetrics,
				MetricsPort:  defaultMetricsPort,
				Pprof:        true,
				PprofPort:    defaultPprofPort,
			},
		},
		"flags take precedence over config file": {
			cfgFileContents: `log-level: debug
http-port: 4576
db-path: /home/config-file/.starcast
`,
			inputArgs: []string{
				"--log-level", "error", "--db-path", "/home/flag/.starcast",
			},
			expectedConfig: &node.Config{
				LogLevel:     utils.ERROR,
				Colour:       defaultColour,
				HTTPPort:     4576,
				DatabasePath: "/home/flag/.starcast",
				Metrics:      defaultMetrics,
				MetricsPort:  defaultMetricsPort,
				Pprof:        defaultPprof,
				PprofPort:    defaultPprofPort,
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if tc.cfgFileContents != "" {
				fileN := tempCfgFile(t, tc.cfgFileContents)
				tc.inputArgs = append(tc.inputArgs, "--config", fileN)
			}

			config := new(node.Config)
			ran := false
			cmd := starcast.NewCmd(config, func(_ *cobra.Command, _ []string) error {
				ran = true
				return nil
			})
			cmd.SetArgs(tc.inputArgs)

			err := cmd.ExecuteContext(context.Background())
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, ran)
			assert.Equal(t, tc.expectedConfig, config)
		})
	}
}
