package config

import (
	"crypto/tls"
	"fmt"
)

// TLSEnabled reports whether the calculator listener serves TLS.
func (c *Config) TLSEnabled() bool {
	return c.Calc.TLSCertFile != "" && c.Calc.TLSKeyFile != ""
}

// LoadTLS returns the listener TLS config, or nil when TLS is not configured.
func (c *Config) LoadTLS() (*tls.Config, error) {
	if !c.TLSEnabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.Calc.TLSCertFile, c.Calc.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair %s: %w", c.Calc.TLSCertFile, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
