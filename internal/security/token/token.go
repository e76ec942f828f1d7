// Package token agrupa las primitivas de los tokens de seguridad: el digest
// que se guarda en lugar del secreto y los generadores de tokens opacos y
// códigos cortos.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// Hasher calcula el digest de un token o código. Sin clave es SHA-256 plano;
// con clave es HMAC-SHA-256, lo que impide el brute force offline de códigos
// cortos a quien solo ve los digests. Es seguro para uso concurrente.
type Hasher struct {
	key []byte
}

// NewHasher crea un Hasher. key puede ser nil.
func NewHasher(key []byte) *Hasher {
	if len(key) == 0 {
		return &Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}
}

// Keyed indica si el Hasher usa HMAC.
func (h *Hasher) Keyed() bool { return h != nil && len(h.key) > 0 }

// Hash devuelve el digest de text en base64url sin padding. Determinístico.
func (h *Hasher) Hash(text string) string {
	if !h.Keyed() {
		return SHA256Base64URL(text)
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(text))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recalcula el digest de text y lo compara en tiempo constante.
func (h *Hasher) Verify(text, expected string) bool {
	got := h.Hash(text)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", fmt.Errorf("token: invalid size %d", nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SHA256Hex devuelve sha256(input) en hexadecimal.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}

// CodeAlphabet omite caracteres ambiguos (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var ErrEmptyAlphabet = errors.New("token: empty alphabet")

// GenerateCode arma un código de length caracteres tomados de alphabet.
// rand.Int evita el sesgo de módulo.
func GenerateCode(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token: invalid code length %d", length)
	}
	runes := []rune(alphabet)
	if len(runes) == 0 {
		return "", ErrEmptyAlphabet
	}
	max := big.NewInt(int64(len(runes)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = runes[n.Int64()]
	}
	return string(out), nil
}
