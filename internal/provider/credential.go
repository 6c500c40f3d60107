// File: internal/provider/credential.go
package provider

import (
	"fmt"
	"os"
)

// Credential holds an API key for the duration of one provider call. The
// backing bytes are zeroed by Clear so the key does not linger in memory (or
// in a heap dump) after the request has been signed.
type Credential struct {
	buf []byte
}

// LoadCredential reads the key from the named environment variable. An unset
// or empty variable is an auth error for the calling provider.
func LoadCredential(providerName, envName string) (*Credential, error) {
	val := os.Getenv(envName)
	if val == "" {
		return nil, &ClassifiedError{
			Provider: providerName,
			Class:    ClassAuth,
			Err:      fmt.Errorf("environment variable %s is not set", envName),
		}
	}
	return &Credential{buf: []byte(val)}, nil
}

// Value returns the key. Callers must not retain the result past Clear.
func (c *Credential) Value() string {
	return string(c.buf)
}

// Clear zeroes the backing storage. The credential is unusable afterwards.
func (c *Credential) Clear() {
	for i := range c.buf {
		c.buf[i] = 0
	}
	c.buf = nil
}
