package certman

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

func testCertPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "parse.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestParsePEMCertificate(t *testing.T) {
	cert, err := ParsePEMCertificate(testCertPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	if cert.Subject.CommonName != "parse.test" {
		t.Errorf("CN = %q", cert.Subject.CommonName)
	}
}

func TestParsePEMCertificate_NoCertificate(t *testing.T) {
	if _, err := ParsePEMCertificate([]byte("not pem at all")); err == nil {
		t.Error("expected error for non-PEM data")
	}
}

func TestParsePEMPrivateKey_PKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	parsed, err := ParsePEMPrivateKey(pemData, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed.(*rsa.PrivateKey); !ok {
		t.Errorf("parsed key type %T", parsed)
	}
}

func TestParsePEMPrivateKey_EC(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	parsed, err := ParsePEMPrivateKey(pemData, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed.(*ecdsa.PrivateKey); !ok {
		t.Errorf("parsed key type %T", parsed)
	}
}

func TestParsePEMPrivateKey_PKCS8(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if _, err := ParsePEMPrivateKey(pemData, ""); err != nil {
		t.Fatal(err)
	}
}

func TestParsePEMPrivateKey_LegacyEncrypted(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	//nolint:staticcheck // legacy encrypted PEM is exactly what the toolkit emits
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY",
		x509.MarshalPKCS1PrivateKey(key), []byte("hunter22"), x509.PEMCipherAES256)
	if err != nil {
		t.Fatal(err)
	}
	pemData := pem.EncodeToMemory(block)

	parsed, err := ParsePEMPrivateKey(pemData, "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed.(*rsa.PrivateKey); !ok {
		t.Errorf("parsed key type %T", parsed)
	}

	if _, err := ParsePEMPrivateKey(pemData, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}

func TestParsePEMPrivateKey_NoPEM(t *testing.T) {
	if _, err := ParsePEMPrivateKey([]byte("garbage"), ""); err == nil {
		t.Error("expected error for non-PEM data")
	}
}
