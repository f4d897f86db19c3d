package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// tlsMinVersion is the minimum TLS version for secure connections.
const tlsMinVersion = tls.VersionTLS12

// Config converts the TLS parameters into a *tls.Config.
//
// It configures:
//   - Trusted CAs from TrustStore (PEM bundle); system roots otherwise
//   - Client certificate from KeyStore, with the key from PrivateKey or,
//     when PrivateKey is empty, from KeyStore itself
//   - Encrypted PEM keys decrypted with PrivateKeyPassword
//   - Cipher suites from EnabledCipherSuites (Go names, ':' or ',' separated)
//   - Server verification unless EnableServerCertAuth is explicitly false
func (s *TLSSpec) Config() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tlsMinVersion,
	}

	if s.TrustStore != "" {
		caPEM, err := os.ReadFile(s.TrustStore)
		if err != nil {
			return nil, fmt.Errorf("reading trust store: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("trust store %s contains no PEM certificates", s.TrustStore)
		}
		cfg.RootCAs = pool
	}

	if s.KeyStore != "" {
		cert, err := s.loadClientCertificate()
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if s.EnabledCipherSuites != "" {
		suites, err := parseCipherSuites(s.EnabledCipherSuites)
		if err != nil {
			return nil, err
		}
		cfg.CipherSuites = suites
	}

	if s.EnableServerCertAuth != nil && !*s.EnableServerCertAuth {
		cfg.InsecureSkipVerify = true //nolint:gosec // explicitly requested via enableServerCertAuth=false
	}

	return cfg, nil
}

func (s *TLSSpec) loadClientCertificate() (tls.Certificate, error) {
	certPEM, err := os.ReadFile(s.KeyStore)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading key store: %w", err)
	}

	keyPEM := certPEM
	if s.PrivateKey != "" {
		keyPEM, err = os.ReadFile(s.PrivateKey)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("reading private key: %w", err)
		}
	}

	if s.PrivateKeyPassword != "" {
		keyPEM, err = decryptKeyPEM(keyPEM, s.PrivateKeyPassword)
		if err != nil {
			return tls.Certificate{}, err
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading client certificate: %w", err)
	}
	return cert, nil
}

// decryptKeyPEM returns the first private key block of data in decrypted
// form. Unencrypted keys are returned as they are.
func decryptKeyPEM(data []byte, password string) ([]byte, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no private key found in PEM data")
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}
		//nolint:staticcheck // legacy RFC 1423 encryption is what OpenSSL-style key stores use
		if !x509.IsEncryptedPEMBlock(block) {
			return pem.EncodeToMemory(block), nil
		}
		//nolint:staticcheck // see above
		der, err := x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("decrypting private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
	}
}

// parseCipherSuites resolves Go cipher suite names, e.g.
// "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384".
func parseCipherSuites(list string) ([]uint16, error) {
	known := make(map[string]uint16)
	for _, suite := range tls.CipherSuites() {
		known[suite.Name] = suite.ID
	}
	for _, suite := range tls.InsecureCipherSuites() {
		known[suite.Name] = suite.ID
	}

	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ':' || r == ',' || r == ' '
	})

	ids := make([]uint16, 0, len(fields))
	for _, name := range fields {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
