// Package cli implements thesisctl, an operator tool that fingerprints files,
// verifies certificates against a running API and mints actor tokens.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "THESISCTL"

// Config is read from flags, THESISCTL_* environment variables and an optional
// config file, in that order of precedence.
type Config struct {
	Server    string        `mapstructure:"server"`
	Timeout   time.Duration `mapstructure:"timeout"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	Algorithm string        `mapstructure:"algorithm"`
}

func Run(out, stderr io.Writer) error {
	return RootCommand(out, stderr).Execute()
}

func RootCommand(out, stderr io.Writer) *cobra.Command {
	v := viper.New()
	cfg := &Config{}
	var configFile string

	cmd := &cobra.Command{
		Use:           "thesisctl",
		Short:         "Thesis certification operator tool",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(out)
	cmd.SetErr(stderr)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig(v, configFile, cfg)
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file")
	flags.String("server", "http://localhost:8080", "API base URL")
	flags.Duration("timeout", 30*time.Second, "Request timeout")
	flags.String("algorithm", "sha256", "Digest algorithm (sha256, sha3-256)")
	flags.String("jwt-secret", "", "HS256 secret used to sign tokens")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("algorithm", flags.Lookup("algorithm"))
	_ = v.BindPFlag("jwt_secret", flags.Lookup("jwt-secret"))

	cmd.AddCommand(NewCmdDigest(out, cfg))
	cmd.AddCommand(NewCmdVerify(out, cfg))
	cmd.AddCommand(NewCmdToken(out, cfg))

	return cmd
}

func loadConfig(v *viper.Viper, configFile string, cfg *Config) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("configuration unmarshaling failed: %w", err)
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")
	return nil
}
