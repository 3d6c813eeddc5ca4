// Package credential selects the ssh authentication method for a task from
// the "ssh" secret namespace.
package credential

import (
	"bytes"
	"errors"

	"golang.org/x/crypto/ssh"

	"github.com/andrej220/sshop/internal/operr"
	"github.com/andrej220/sshop/pkg/secrets"
)

// Secret names looked up in the ssh namespace.
const (
	SecretPassword            = "password"
	SecretPublicKey           = "public_key"
	SecretPrivateKey          = "private_key"
	SecretPublicKeyPassphrase = "public_key_passphrase"
)

// Credentials is either Password or PublicKey.
type Credentials interface {
	// Method is "password" or "publickey", for logging.
	Method() string
	AuthMethods() ([]ssh.AuthMethod, error)
	sealed()
}

type Password struct {
	Value string
}

func (Password) Method() string { return "password" }
func (Password) sealed()        {}

func (p Password) AuthMethods() ([]ssh.AuthMethod, error) {
	return []ssh.AuthMethod{ssh.Password(p.Value)}, nil
}

// PublicKey holds key material in OpenSSH text form. Passphrase must be
// empty; Resolve never builds one with a passphrase.
type PublicKey struct {
	PrivateKey string
	PublicKey  string
	Passphrase string
}

func (PublicKey) Method() string { return "publickey" }
func (PublicKey) sealed()        {}

// AuthMethods parses the key pair. The public key must belong to the
// private key; an OpenSSH certificate for it is presented as such.
func (k PublicKey) AuthMethods() ([]ssh.AuthMethod, error) {
	if k.Passphrase != "" {
		return nil, operr.UnsupportedFeature("credentials", "%s is not supported yet", SecretPublicKeyPassphrase)
	}
	signer, err := ssh.ParsePrivateKey([]byte(k.PrivateKey))
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, operr.UnsupportedFeature("credentials", "encrypted %s is not supported yet", SecretPrivateKey)
		}
		return nil, operr.New(operr.KindConfiguration, "credentials", err)
	}

	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k.PublicKey))
	if err != nil {
		return nil, operr.New(operr.KindConfiguration, "credentials", err)
	}

	if cert, ok := pub.(*ssh.Certificate); ok {
		if !sameKey(cert.Key, signer.PublicKey()) {
			return nil, operr.Configuration("credentials", "certificate in %s was not issued for %s", SecretPublicKey, SecretPrivateKey)
		}
		certSigner, err := ssh.NewCertSigner(cert, signer)
		if err != nil {
			return nil, operr.New(operr.KindConfiguration, "credentials", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(certSigner)}, nil
	}

	if !sameKey(pub, signer.PublicKey()) {
		return nil, operr.Configuration("credentials", "%s does not match %s", SecretPublicKey, SecretPrivateKey)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func sameKey(a, b ssh.PublicKey) bool {
	return bytes.Equal(a.Marshal(), b.Marshal())
}

type Options struct {
	PasswordAuth bool
	// PasswordOverride, when set, names the secret holding the password.
	PasswordOverride string
}

// Resolve picks the credentials for opts. It does no network I/O.
func Resolve(p secrets.Provider, opts Options) (Credentials, error) {
	if opts.PasswordAuth {
		password, err := resolvePassword(p, opts)
		if err != nil {
			return nil, err
		}
		return Password{Value: password}, nil
	}

	publicKey, ok := p.SecretOptional(SecretPublicKey)
	if !ok {
		return nil, operr.MissingCredential(SecretPublicKey)
	}
	if _, ok := p.SecretOptional(SecretPublicKeyPassphrase); ok {
		return nil, operr.UnsupportedFeature("credentials", "%s is not supported yet", SecretPublicKeyPassphrase)
	}
	privateKey, ok := p.SecretOptional(SecretPrivateKey)
	if !ok {
		return nil, operr.MissingCredential(SecretPrivateKey)
	}
	return PublicKey{PrivateKey: privateKey, PublicKey: publicKey}, nil
}

func resolvePassword(p secrets.Provider, opts Options) (string, error) {
	if opts.PasswordOverride != "" {
		v, err := p.Secret(opts.PasswordOverride)
		if err != nil {
			return "", operr.New(operr.KindMissingCredential, "credentials", err)
		}
		return v, nil
	}
	v, ok := p.SecretOptional(SecretPassword)
	if !ok {
		return "", operr.MissingCredential(SecretPassword)
	}
	return v, nil
}
