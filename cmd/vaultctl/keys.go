package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"satvault/cmd/internal/passphrase"
	"satvault/crypto"
	"satvault/gateway/auth"
)

const (
	keystorePassEnv = "SATVAULT_KEYSTORE_PASS"
	authSecretEnv   = "SATVAULT_AUTH_SECRET"
)

var (
	tokenNow       = time.Now
	keygenPassword = func(envVar string) (string, error) {
		return passphrase.NewSource(envVar, "keystore").Get()
	}
)

// runKeygenCommand writes a fresh secp256k1 key into an encrypted keystore and
// prints its address.
func runKeygenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", "", "keystore output path")
	passEnv := fs.String("pass-env", keystorePassEnv, "environment variable holding the keystore passphrase")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		return printUsageError(stderr, "--out is required")
	}
	if !*force {
		if _, err := os.Stat(path); err == nil {
			return printUsageError(stderr, fmt.Sprintf("keystore file %s already exists (use --force to overwrite)", path))
		}
	}
	pass, err := keygenPassword(*passEnv)
	if err != nil {
		return printError(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err)
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		return printError(stderr, fmt.Errorf("write keystore: %w", err))
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", key.PubKey().Address(), path)
	return 0
}

// runTokenCommand signs a bearer token for caller with the gateway secret.
func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	caller := fs.String("caller", "", "caller address placed in the subject claim")
	secretEnv := fs.String("secret-env", authSecretEnv, "environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "satvault", "issuer claim")
	audience := fs.String("audience", "satvault-api", "audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*caller) == "" {
		return printUsageError(stderr, "--caller is required")
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(*caller))
	if err != nil {
		return printUsageError(stderr, fmt.Sprintf("--caller: %v", err))
	}
	if *ttl <= 0 {
		return printUsageError(stderr, "--ttl must be positive")
	}
	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		return printUsageError(stderr, fmt.Sprintf("environment variable %s is not set", *secretEnv))
	}
	token, err := auth.IssueToken(auth.TokenConfig{
		Secret:   secret,
		Issuer:   *issuer,
		Audience: *audience,
	}, addr, *ttl, tokenNow())
	if err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}
