// Package tls builds the *tls.Config for the HTTPS listener, with
// optional self-signed certificate generation for development setups.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hzrd149/process-pastry/internal/config"
)

const (
	tlsCrt = "tls.crt"
	tlsKey = "tls.key"
)

// Setup returns a *tls.Config for the server, or (nil, nil) when TLS
// is disabled. Explicit cert/key files take priority over a
// certificate directory; with AutoGenerate set, a missing directory
// pair is self-signed on the fly.
func Setup(cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		return newConfig(cfg.CertFile, cfg.KeyFile), nil
	}
	if cfg.Dir != "" {
		certPath := filepath.Join(cfg.Dir, tlsCrt)
		keyPath := filepath.Join(cfg.Dir, tlsKey)
		if cfg.AutoGenerate && !certificatesExist(certPath, keyPath) {
			if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
				return nil, fmt.Errorf("create cert dir: %w", err)
			}
			gen := CertConfig{
				CommonName:   "localhost",
				Organization: "process-pastry",
				DNSNames:     []string{"localhost"},
				IPAddresses:  []string{"127.0.0.1"},
				NotAfter:     time.Now().AddDate(1, 0, 0),
				CertPath:     certPath,
				KeyPath:      keyPath,
			}
			if err := GenerateSelfSignedCert(gen); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
		return newConfig(certPath, keyPath), nil
	}
	return nil, errors.New("TLS enabled but no valid certificate configuration found")
}

func certificatesExist(certPath, keyPath string) bool {
	if _, err := os.Stat(certPath); err != nil {
		return false
	}
	_, err := os.Stat(keyPath)
	return err == nil
}

// newConfig loads certificates dynamically so a rotated pair on disk
// is picked up without a restart.
func newConfig(certFile, keyFile string) *tls.Config {
	baseDir := filepath.Dir(certFile)
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			certPEM, err := safeReadFile(baseDir, certFile)
			if err != nil {
				return nil, err
			}
			keyPEM, err := safeReadFile(baseDir, keyFile)
			if err != nil {
				return nil, err
			}
			cert, err := tls.X509KeyPair(certPEM, keyPEM)
			return &cert, err
		},
	}
}

// safeReadFile reads file content only from within baseDir.
func safeReadFile(baseDir, p string) ([]byte, error) {
	clean := filepath.Clean(p)
	if baseDir != "" {
		absBase, _ := filepath.Abs(baseDir)
		absFile, _ := filepath.Abs(clean)
		if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) && absFile != absBase {
			return nil, errors.New("file path outside of allowed directory")
		}
	}
	return os.ReadFile(clean)
}
