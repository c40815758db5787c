package common

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ID prefixes.
const (
	PrefixMasterProduct = "mp"
	PrefixReceipt       = "rcpt"
)

// GenerateID creates a prefixed NanoID, e.g. "mp-V1StGXR8_Z5jdHi6B-myT".
func GenerateID(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
