// Package tls builds the research server's TLS configuration.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/dd0wney/agentgraph/pkg/config"
)

const defaultValidFor = 365 * 24 * time.Hour

// ServerConfig returns the TLS configuration for cfg, or nil when TLS is
// disabled. A configured key pair is loaded; otherwise a self-signed
// certificate is generated for cfg.Hosts.
func ServerConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var cert tls.Certificate
	var err error
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
	} else {
		validFor := cfg.ValidFor
		if validFor <= 0 {
			validFor = defaultValidFor
		}
		cert, err = GenerateSelfSigned(cfg.Hosts, validFor)
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: SecureCipherSuites(),
	}, nil
}

// SecureCipherSuites are the TLS 1.2 suites allowed; TLS 1.3 suites are not
// configurable
func SecureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
}

// CertificateInfo describes the leaf certificate being served
type CertificateInfo struct {
	Subject  string
	DNSNames []string
	NotAfter time.Time
}

// ExpiresIn returns the time until the certificate expires
func (ci CertificateInfo) ExpiresIn() time.Duration {
	return time.Until(ci.NotAfter)
}

// Describe parses the leaf of the first certificate in c
func Describe(c *tls.Config) (CertificateInfo, error) {
	if c == nil || len(c.Certificates) == 0 || len(c.Certificates[0].Certificate) == 0 {
		return CertificateInfo{}, fmt.Errorf("no certificate configured")
	}
	leaf, err := x509.ParseCertificate(c.Certificates[0].Certificate[0])
	if err != nil {
		return CertificateInfo{}, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return CertificateInfo{
		Subject:  leaf.Subject.String(),
		DNSNames: leaf.DNSNames,
		NotAfter: leaf.NotAfter,
	}, nil
}
