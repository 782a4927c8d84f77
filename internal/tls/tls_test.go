package tls

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hzrd149/process-pastry/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	if c, err := Setup(nil); c != nil || err != nil {
		t.Fatalf("nil config: %v %v", c, err)
	}
	if c, err := Setup(&config.TLSConfig{}); c != nil || err != nil {
		t.Fatalf("disabled config: %v %v", c, err)
	}
}

func TestSetupRequiresSomeSource(t *testing.T) {
	if _, err := Setup(&config.TLSConfig{Enabled: true}); err == nil {
		t.Fatalf("expected error when no cert source configured")
	}
}

func TestSetupAutoGenerates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tls")
	cfg := &config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true}
	tc, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tc == nil || tc.GetCertificate == nil {
		t.Fatalf("no tls.Config returned")
	}
	if _, err := os.Stat(filepath.Join(dir, "tls.crt")); err != nil {
		t.Fatalf("certificate not generated: %v", err)
	}
	cert, err := tc.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate: %v", err)
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cfg := CertConfig{
		CommonName:   "localhost",
		Organization: "test",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []string{"127.0.0.1", "not-an-ip"},
		NotAfter:     time.Now().Add(24 * time.Hour),
		CertPath:     filepath.Join(dir, "tls.crt"),
		KeyPath:      filepath.Join(dir, "tls.key"),
	}
	if err := GenerateSelfSignedCert(cfg); err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	st, err := os.Stat(cfg.KeyPath)
	if err != nil {
		t.Fatalf("key not written: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("key permissions too open: %v", st.Mode().Perm())
	}
}
