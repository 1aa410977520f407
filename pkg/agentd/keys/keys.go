// Package keys manages the SSH keypair agentd uses to reach each agent instance.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const DefaultBits = 4096

type Keypair struct {
	// PEM encoded private key.
	Private []byte
	// Public key in authorized_keys format, without trailing newline.
	Public string
}

// Signer parses the private key for use in an SSH client.
func (k Keypair) Signer() (ssh.Signer, error) {
	return ssh.ParsePrivateKey(k.Private)
}

type Store interface {
	// Recover returns the keypair stored for id, generating and storing a new one if there is none.
	Recover(id string) (Keypair, error)
	// Remove deletes the keypair stored for id. Removing a missing keypair is not an error.
	Remove(id string) error
}

// Directory stores keypairs as files named after the agent id.
type Directory struct {
	Path string
	Bits int

	// serializes Recover so concurrent callers for one id agree on the stored keypair
	lock sync.Mutex
}

var _ Store = &Directory{}

func (d *Directory) paths(id string) (string, string, error) {
	if len(id) == 0 || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", "", fmt.Errorf("invalid keypair id '%s'", id)
	}
	return filepath.Join(d.Path, id+"_private.key"), filepath.Join(d.Path, id+"_public.key"), nil
}

func (d *Directory) Recover(id string) (Keypair, error) {
	privatePath, publicPath, err := d.paths(id)
	if err != nil {
		return Keypair{}, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	private, privateErr := os.ReadFile(privatePath)
	public, publicErr := os.ReadFile(publicPath)
	if privateErr == nil && publicErr == nil {
		keypair := Keypair{
			Private: private,
			Public:  strings.TrimSpace(string(public)),
		}
		if _, err := keypair.Signer(); err != nil {
			return Keypair{}, fmt.Errorf("stored private key for %s: %w", id, err)
		}
		return keypair, nil
	}
	for _, err := range []error{privateErr, publicErr} {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Keypair{}, err
		}
	}

	keypair, err := Generate(d.Bits)
	if err != nil {
		return Keypair{}, err
	}

	err = os.MkdirAll(d.Path, 0o700)
	if err != nil {
		return Keypair{}, err
	}
	err = os.WriteFile(privatePath, keypair.Private, 0o600)
	if err != nil {
		return Keypair{}, err
	}
	err = os.WriteFile(publicPath, []byte(keypair.Public+"\n"), 0o644)
	if err != nil {
		return Keypair{}, err
	}

	log.WithField("agent_id", id).Infof("Generated new %d bit SSH keypair", d.bits())
	return keypair, nil
}

func (d *Directory) Remove(id string) error {
	privatePath, publicPath, err := d.paths(id)
	if err != nil {
		return err
	}

	for _, path := range []string{privatePath, publicPath} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (d *Directory) bits() int {
	if d.Bits <= 0 {
		return DefaultBits
	}
	return d.Bits
}

// Generate creates a new RSA keypair. A non-positive size selects DefaultBits.
func Generate(bits int) (Keypair, error) {
	if bits <= 0 {
		bits = DefaultBits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate rsa key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		return Keypair{}, fmt.Errorf("encode private key: %w", err)
	}

	public, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return Keypair{}, fmt.Errorf("encode public key: %w", err)
	}

	return Keypair{
		Private: pem.EncodeToMemory(block),
		Public:  strings.TrimSpace(string(ssh.MarshalAuthorizedKey(public))),
	}, nil
}
