package config

import (
	"fmt"
	"strconv"
)

// Masked values shown for secret keys.
const (
	SecretSet   = "set"
	SecretUnset = "unset"
)

// KeyInfo describes a config key for display purposes. Secret keys carry
// SecretSet or SecretUnset instead of their value.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Secret bool
}

// ShowAll lists every key in the effective config, bot token and storage
// credentials included but masked, so an operator can see what `start`
// would run with.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		info := KeyInfo{Key: s.key, EnvVar: s.env, Secret: s.secret}
		v := fmt.Sprintf("%v", s.extract(cfg))
		switch {
		case !s.secret:
			info.Value = v
		case v != "":
			info.Value = SecretSet
		default:
			info.Value = SecretUnset
		}
		result = append(result, info)
	}
	return result
}

// SetKey writes a config key to the config file.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), key, value)
}

func setKey(b ConfigBackend, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		switch s.typ {
		case kString:
			return b.SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return b.SetInt(key, i)
		}
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
