package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"cantorfi/cmd/internal/passphrase"
)

const defaultSecretEnv = "CANTOR_HMAC_SECRET"

// cantor-token mints HS256 bearer tokens accepted by vaultd. The subject is
// the caller address every state-changing request acts as.
func main() {
	fs := flag.NewFlagSet("cantor-token", flag.ExitOnError)
	subject := fs.String("sub", "", "Caller address (0x-prefixed hex)")
	issuer := fs.String("iss", "cantorfi", "Token issuer")
	audience := fs.String("aud", "vaultd", "Token audience")
	scope := fs.String("scope", "vault:write", "Space separated scopes")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "Environment variable holding the HMAC secret")
	_ = fs.Parse(os.Args[1:])

	token, err := issue(*subject, *issuer, *audience, *scope, *ttl, passphrase.NewSource(*secretEnv, "HMAC signing secret"), time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

type secretSource interface {
	Get() (string, error)
}

func issue(subject, issuer, audience, scope string, ttl time.Duration, secrets secretSource, now time.Time) (string, error) {
	subject = strings.TrimSpace(subject)
	if !common.IsHexAddress(subject) {
		return "", fmt.Errorf("-sub must be a hex address, got %q", subject)
	}
	addr := common.HexToAddress(subject)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("-sub must not be the zero address")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("-ttl must be positive")
	}
	secret, err := secrets.Get()
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"sub":   addr.Hex(),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"scope": strings.TrimSpace(scope),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
