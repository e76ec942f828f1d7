package password

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// params livianos para que los tests no tarden
var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify(t *testing.T) {
	phc, err := Hash(fast, "correct horse 1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(phc, "$argon2id$v=19$m=1024,t=1,p=1$"))

	require.True(t, Verify("correct horse 1", phc))
	require.False(t, Verify("correct horse 2", phc))

	other, err := Hash(fast, "correct horse 1")
	require.NoError(t, err)
	require.NotEqual(t, phc, other, "salt must differ")
}

func TestHashEmpty(t *testing.T) {
	_, err := Hash(fast, "")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerifyMalformed(t *testing.T) {
	for _, phc := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=18$m=1,t=1,p=1$AA$AA", "$argon2id$v=19$m=1,t=1,p=1$!!$AA"} {
		require.False(t, Verify("x", phc), phc)
	}
}

func TestVerifyRejectsDegenerateParams(t *testing.T) {
	phc, err := Hash(fast, "correct horse 1")
	require.NoError(t, err)
	parts := strings.Split(phc, "$")
	tail := "$" + parts[4] + "$" + parts[5]

	for _, params := range []string{"m=1024,t=0,p=1", "m=1024,t=1,p=0", "m=0,t=1,p=1"} {
		bad := "$argon2id$v=19$" + params + tail
		require.NotPanics(t, func() { require.False(t, Verify("correct horse 1", bad)) }, params)
	}
}

func TestPolicy(t *testing.T) {
	p := Policy{MinLength: 8, RequireUpper: true, RequireDigit: true, RequireSymbol: true}

	ok, reasons := p.Validate("abc")
	require.False(t, ok)
	require.ElementsMatch(t, []string{"too_short", "missing_upper", "missing_digit", "missing_symbol"}, reasons)

	ok, _ = p.Validate("Abcdefg1!")
	require.True(t, ok)
	require.NoError(t, p.Check("Abcdefg1!"))

	var pe *PolicyError
	require.True(t, errors.As(p.Check("abc"), &pe))
	require.Contains(t, pe.Error(), "too_short")
}

func TestBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "common.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comentario\nHelloJohn2024\n\nletmein2024\n"), 0o600))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	require.True(t, bl.Contains("hellojohn2024"))
	require.True(t, bl.Contains("  LetMeIn2024 "))
	require.True(t, bl.Contains("password123"), "embedded list is always loaded")
	require.False(t, bl.Contains("# comentario"))

	p := Policy{MinLength: 4, Blacklist: bl}
	ok, reasons := p.Validate("password123")
	require.False(t, ok)
	require.Equal(t, []string{"blacklisted"}, reasons)

	builtin, err := LoadBlacklist("")
	require.NoError(t, err)
	require.True(t, builtin.Contains("Password123"))
	require.False(t, builtin.Contains("hellojohn2024"))
	require.Equal(t, bl.Len()-2, builtin.Len())

	_, err = LoadBlacklist(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)

	var nilBL *Blacklist
	require.False(t, nilBL.Contains("x"))
}
