package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// selfSignedRenewBefore is how close to expiry a stored self-signed
// certificate may get before it is replaced.
const selfSignedRenewBefore = 7 * 24 * time.Hour

// TLS certificate sources.
const (
	TLSSourceAutocert   = "autocert"
	TLSSourceFiles      = "files"
	TLSSourceSelfSigned = "self-signed"
)

// TLSSetup is the TLS configuration chosen for the web listener.
type TLSSetup struct {
	Config   *tls.Config
	Autocert *autocert.Manager // Non-nil when using Let's Encrypt
	Source   string
	NotAfter time.Time // Leaf expiry; zero for autocert
}

// SetupTLS picks a certificate source for cfg. A domain selects Let's
// Encrypt, a cert/key pair is loaded as given, and otherwise a self-signed
// certificate is kept in CertDir.
func SetupTLS(cfg WebConfig) (*TLSSetup, error) {
	switch {
	case cfg.Domain != "":
		log.Printf("[tls] using Let's Encrypt for %q", cfg.Domain)
		cacheDir := filepath.Join(cfg.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return nil, fmt.Errorf("server: tls: autocert cache: %w", err)
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Domain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSSetup{Config: m.TLSConfig(), Autocert: m, Source: TLSSourceAutocert}, nil

	case cfg.CertFile != "" && cfg.KeyFile != "":
		log.Printf("[tls] loading %s", cfg.CertFile)
		return loadKeyPair(cfg.CertFile, cfg.KeyFile, TLSSourceFiles)

	default:
		return selfSigned(cfg)
	}
}

func loadKeyPair(certFile, keyFile, source string) (*TLSSetup, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("server: tls: load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("server: tls: parse certificate: %w", err)
	}
	return &TLSSetup{
		Config:   &tls.Config{Certificates: []tls.Certificate{cert}},
		Source:   source,
		NotAfter: leaf.NotAfter,
	}, nil
}

// selfSigned loads the certificate stored in cfg.CertDir, generating a new
// one when none exists or the stored one is about to expire.
func selfSigned(cfg WebConfig) (*TLSSetup, error) {
	dir := cfg.CertDir
	if dir == "" {
		dir = "certs"
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("server: tls: cert dir: %w", err)
	}
	certPath := filepath.Join(dir, "self-signed.crt")
	keyPath := filepath.Join(dir, "self-signed.key")

	if setup, err := loadKeyPair(certPath, keyPath, TLSSourceSelfSigned); err == nil {
		if time.Until(setup.NotAfter) > selfSignedRenewBefore {
			return setup, nil
		}
		log.Printf("[tls] self-signed certificate expires %s, replacing it", setup.NotAfter.Format(time.DateOnly))
	}

	if err := writeSelfSigned(certPath, keyPath, cfg.ServerName, cfg.Host); err != nil {
		return nil, err
	}
	log.Printf("[tls] self-signed certificate written to %s", dir)
	return loadKeyPair(certPath, keyPath, TLSSourceSelfSigned)
}

// writeSelfSigned creates a P-256 certificate valid for a year for
// localhost plus host, if set.
func writeSelfSigned(certPath, keyPath, org, host string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("server: tls: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("server: tls: serial: %w", err)
	}
	if org == "" {
		org = "GoStation"
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{org}, CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	if host != "" {
		if ip := net.ParseIP(host); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("server: tls: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("server: tls: marshal key: %w", err)
	}

	if err := writePEM(certPath, 0644, "CERTIFICATE", der); err != nil {
		return err
	}
	return writePEM(keyPath, 0600, "EC PRIVATE KEY", keyDER)
}

func writePEM(path string, perm os.FileMode, typ string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("server: tls: write %s: %w", filepath.Base(path), err)
	}
	if err := pem.Encode(f, &pem.Block{Type: typ, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("server: tls: encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
