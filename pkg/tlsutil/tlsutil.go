// Package tlsutil builds client TLS configurations for the bridge's outbound
// connections (NATS and rosbridge websockets).
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/gamma-programme/rospitch/errors"
)

// ClientConfig describes how a client verifies servers and, optionally,
// authenticates itself with a certificate.
type ClientConfig struct {
	Enabled            bool     `json:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty"` // Client certificate for mTLS
	KeyFile            string   `json:"key_file,omitempty"`
	ServerName         string   `json:"server_name,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `json:"min_version,omitempty"`          // "1.2" (default) or "1.3"
}

// Validate checks the fields that can be checked without touching files.
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cert_file and key_file must be set together", errors.ErrInvalidConfig),
			"tlsutil", "Validate", "check client certificate")
	}
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unsupported TLS version %q", errors.ErrInvalidConfig, c.MinVersion),
			"tlsutil", "Validate", "check min version")
	}
	return nil
}

// LoadClientTLSConfig creates a tls.Config for clients. It returns nil when
// TLS is disabled. The system CA bundle is always trusted; CAFiles add to it.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
		ServerName: cfg.ServerName,
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}
	tlsConfig.RootCAs = rootCAs

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Note: Setting this is intentional via config - operators know the security implications
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
