package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestCert creates a self-signed certificate for testing
func generateTestCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Robot"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return certPEM, keyPEM
}

// setupTestFiles writes a cert, its key and the same cert as a CA bundle
func setupTestFiles(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()

	tmpDir := t.TempDir()
	certPEM, keyPEM := generateTestCert(t)

	certFile = filepath.Join(tmpDir, "cert.pem")
	keyFile = filepath.Join(tmpDir, "key.pem")
	caFile = filepath.Join(tmpDir, "ca.pem")

	require.NoError(t, os.WriteFile(certFile, certPEM, 0644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0644))
	return certFile, keyFile, caFile
}

func TestLoadClientTLSConfig_Disabled(t *testing.T) {
	cfg, err := LoadClientTLSConfig(ClientConfig{CAFiles: []string{"/nonexistent.pem"}})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile, caFile := setupTestFiles(t)

	tests := []struct {
		name      string
		cfg       ClientConfig
		wantCerts int
		wantMin   uint16
	}{
		{
			name:    "system roots only",
			cfg:     ClientConfig{Enabled: true},
			wantMin: tls.VersionTLS12,
		},
		{
			name:    "custom CA and TLS 1.3",
			cfg:     ClientConfig{Enabled: true, CAFiles: []string{caFile}, MinVersion: "1.3", ServerName: "rosbridge.lab"},
			wantMin: tls.VersionTLS13,
		},
		{
			name:      "mutual TLS",
			cfg:       ClientConfig{Enabled: true, CAFiles: []string{caFile}, CertFile: certFile, KeyFile: keyFile},
			wantCerts: 1,
			wantMin:   tls.VersionTLS12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadClientTLSConfig(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, tt.wantMin, cfg.MinVersion)
			assert.NotNil(t, cfg.RootCAs)
			assert.Len(t, cfg.Certificates, tt.wantCerts)
			assert.Equal(t, tt.cfg.ServerName, cfg.ServerName)
			assert.False(t, cfg.InsecureSkipVerify)
		})
	}
}

func TestLoadClientTLSConfig_InsecureSkipVerify(t *testing.T) {
	cfg, err := LoadClientTLSConfig(ClientConfig{Enabled: true, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
}

func TestLoadClientTLSConfig_Errors(t *testing.T) {
	certFile, keyFile, _ := setupTestFiles(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0644))

	tests := []struct {
		name    string
		cfg     ClientConfig
		invalid bool
	}{
		{"missing CA file", ClientConfig{Enabled: true, CAFiles: []string{"/nonexistent/ca.pem"}}, false},
		{"invalid PEM", ClientConfig{Enabled: true, CAFiles: []string{garbage}}, false},
		{"key without cert", ClientConfig{Enabled: true, KeyFile: keyFile}, true},
		{"mismatched pair", ClientConfig{Enabled: true, CertFile: certFile, KeyFile: garbage}, false},
		{"unknown version", ClientConfig{Enabled: true, MinVersion: "1.1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadClientTLSConfig(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, cfg)
			if tt.invalid {
				assert.True(t, errors.IsInvalid(err))
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			} else {
				assert.True(t, errors.IsFatal(err))
			}
		})
	}
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("1.3"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.2"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion(""))
}
