package password

import (
	"fmt"
	"strings"
	"unicode"
)

type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool

	// Blacklist opcional de contraseñas comunes.
	Blacklist *Blacklist
}

// DefaultPolicy es la política usada por los flujos de cuenta.
var DefaultPolicy = Policy{MinLength: 10, RequireLower: true, RequireDigit: true}

// PolicyError lista las reglas incumplidas.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password policy: %s", strings.Join(e.Reasons, ","))
}

func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if p.Blacklist.Contains(s) {
		reasons = append(reasons, "blacklisted")
	}
	return len(reasons) == 0, reasons
}

// Check es Validate devolviendo *PolicyError.
func (p Policy) Check(s string) error {
	if ok, reasons := p.Validate(s); !ok {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}
