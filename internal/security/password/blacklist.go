package password

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"strings"
)

//go:embed common.txt
var builtinList string

// Blacklist es un set inmutable de contraseñas prohibidas, en minúsculas.
type Blacklist struct {
	data map[string]struct{}
}

// LoadBlacklist arranca con la lista embebida y le suma el archivo en path
// (vacío = sólo la embebida). Líneas vacías y que empiezan con # se ignoran.
func LoadBlacklist(path string) (*Blacklist, error) {
	bl := &Blacklist{data: map[string]struct{}{}}
	if err := bl.read(strings.NewReader(builtinList)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return bl, nil
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := bl.read(f); err != nil {
		return nil, err
	}
	return bl, nil
}

func (b *Blacklist) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s := normalize(sc.Text()); s != "" && !strings.HasPrefix(s, "#") {
			b.data[s] = struct{}{}
		}
	}
	return sc.Err()
}

// Len cantidad de entradas.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Contains es nil-safe: una Policy sin blacklist no rechaza nada por esto.
func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	_, ok := b.data[normalize(pwd)]
	return ok
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
