package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/subosito/gotenv"
)

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first without overriding variables that
// are already set.
func Load() (*Config, error) {
	_ = gotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Credentials = credentialsFromEnv()
	return &cfg, nil
}

// credentialsFromEnv collects CREDENTIAL_* variables into connector
// credential fields, lowercasing the remainder of the name.
func credentialsFromEnv() map[string]string {
	k := koanf.New(".")
	err := k.Load(env.Provider(CredentialPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, CredentialPrefix))
	}), nil)
	if err != nil {
		return nil
	}

	credentials := make(map[string]string)
	for key, value := range k.All() {
		if s, ok := value.(string); ok {
			credentials[key] = s
		}
	}
	return credentials
}
