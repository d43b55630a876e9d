package encryption

import (
	"fmt"

	"omnia/internal/config"
	"omnia/internal/snapshot"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" disables encryption and returns nil, nil.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (snapshot.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
