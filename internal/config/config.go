package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver          string        `yaml:"driver"` // postgres | mysql | sqlite
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"storage"`

	Tokens struct {
		DefaultValidity time.Duration `yaml:"default_validity"`
		ActivationTTL   time.Duration `yaml:"activation_ttl"`
		ResetTTL        time.Duration `yaml:"reset_ttl"`
		IssueRetries    int           `yaml:"issue_retries"`
		TokenBytes      int           `yaml:"token_bytes"`
		// HashKey activa HMAC-SHA-256 sobre tokens y códigos.
		HashKey       string        `yaml:"hash_key"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"tokens"`

	ValidationCode struct {
		Length          int           `yaml:"length"`
		Alphabet        string        `yaml:"alphabet"`
		DefaultValidity time.Duration `yaml:"default_validity"`
		// MaxValidity es el tope para validity_seconds pedido por el cliente.
		MaxValidity time.Duration `yaml:"max_validity"`
		SealKey     string        `yaml:"seal_key"`
	} `yaml:"validation_code"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Email struct {
		BaseURL      string `yaml:"base_url"`
		TemplatesDir string `yaml:"templates_dir"`
		ActivatePath string `yaml:"activate_path"`
		ResetPath    string `yaml:"reset_path"`
		// DebugEchoCodes expone el validation code en X-Debug-Code (sólo dev).
		DebugEchoCodes bool `yaml:"debug_echo_codes"`
	} `yaml:"email"`

	Security struct {
		PasswordPolicy struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
		Argon2                struct {
			MemoryKiB   uint32 `yaml:"memory_kib"`
			Time        uint32 `yaml:"time"`
			Parallelism uint8  `yaml:"parallelism"`
		} `yaml:"argon2"`
	} `yaml:"security"`
}

// Load lee path (YAML), aplica defaults y overrides de entorno y valida.
// Con path vacío arranca de defaults + entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()

	// Overrides por env
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Guardia dura: en prod NUNCA exponemos códigos por headers.
	if c.IsProd() {
		c.Email.DebugEchoCodes = false
	}

	// Normalizar rutas relativas respecto al directorio del YAML
	if path != "" {
		base := filepath.Dir(path)
		c.Security.PasswordBlacklistPath = resolve(base, c.Security.PasswordBlacklistPath)
		c.Email.TemplatesDir = resolve(base, c.Email.TemplatesDir)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "file:tokens.db?_busy_timeout=5000"
	}
	if c.Storage.ConnMaxLifetime == 0 {
		c.Storage.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Tokens.DefaultValidity == 0 {
		c.Tokens.DefaultValidity = time.Hour
	}
	if c.Tokens.ActivationTTL == 0 {
		c.Tokens.ActivationTTL = 48 * time.Hour
	}
	if c.Tokens.ResetTTL == 0 {
		c.Tokens.ResetTTL = time.Hour
	}
	if c.Tokens.IssueRetries == 0 {
		c.Tokens.IssueRetries = 3
	}
	if c.Tokens.TokenBytes == 0 {
		c.Tokens.TokenBytes = 32
	}
	if c.Tokens.SweepInterval == 0 {
		c.Tokens.SweepInterval = 10 * time.Minute
	}
	if c.ValidationCode.Length == 0 {
		c.ValidationCode.Length = 6
	}
	if c.ValidationCode.DefaultValidity == 0 {
		c.ValidationCode.DefaultValidity = 10 * time.Minute
	}
	if c.ValidationCode.MaxValidity == 0 {
		c.ValidationCode.MaxValidity = 24 * time.Hour
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Email.BaseURL == "" {
		c.Email.BaseURL = "http://localhost:8080"
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 10
	}
	if c.Security.Argon2.MemoryKiB == 0 {
		c.Security.Argon2.MemoryKiB = 64 * 1024
	}
	if c.Security.Argon2.Time == 0 {
		c.Security.Argon2.Time = 3
	}
	if c.Security.Argon2.Parallelism == 0 {
		c.Security.Argon2.Parallelism = 1
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("config: %s: %w", key, err)
	}
	return i, true, nil
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, true, nil
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
// Un valor numérico o de duración mal formado es error, no se ignora.
func (c *Config) applyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v, ok := getEnvStr(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok, err := getEnvInt(key)
		if err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok, err := getEnvDur(key)
		if err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}

	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	str("LOG_LEVEL", &c.Log.Level)

	// SERVER
	str("SERVER_ADDR", &c.Server.Addr)
	dur("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	// STORAGE
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DSN", &c.Storage.DSN)
	num("STORAGE_MAX_OPEN_CONNS", &c.Storage.MaxOpenConns)
	num("STORAGE_MAX_IDLE_CONNS", &c.Storage.MaxIdleConns)
	dur("STORAGE_CONN_MAX_LIFETIME", &c.Storage.ConnMaxLifetime)

	// TOKENS
	dur("TOKEN_DEFAULT_VALIDITY", &c.Tokens.DefaultValidity)
	dur("TOKEN_ACTIVATION_TTL", &c.Tokens.ActivationTTL)
	dur("TOKEN_RESET_TTL", &c.Tokens.ResetTTL)
	num("TOKEN_ISSUE_RETRIES", &c.Tokens.IssueRetries)
	str("TOKEN_HASH_KEY", &c.Tokens.HashKey)
	dur("TOKEN_SWEEP_INTERVAL", &c.Tokens.SweepInterval)

	// VALIDATION CODES
	num("VALIDATION_CODE_LENGTH", &c.ValidationCode.Length)
	dur("VALIDATION_CODE_VALIDITY", &c.ValidationCode.DefaultValidity)
	dur("VALIDATION_CODE_MAX_VALIDITY", &c.ValidationCode.MaxValidity)
	str("VALIDATION_CODE_SEAL_KEY", &c.ValidationCode.SealKey)

	// SMTP
	str("SMTP_HOST", &c.SMTP.Host)
	num("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)
	str("SMTP_TLS", &c.SMTP.TLS)
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// EMAIL
	str("EMAIL_BASE_URL", &c.Email.BaseURL)
	str("EMAIL_TEMPLATES_DIR", &c.Email.TemplatesDir)
	if v, ok := getEnvBool("EMAIL_DEBUG_ECHO_CODES"); ok {
		c.Email.DebugEchoCodes = v
	}

	// SECURITY
	num("SECURITY_PASSWORD_POLICY_MIN_LENGTH", &c.Security.PasswordPolicy.MinLength)
	str("SECURITY_PASSWORD_BLACKLIST_PATH", &c.Security.PasswordBlacklistPath)

	return errors.Join(errs...)
}

var drivers = map[string]bool{"postgres": true, "mysql": true, "sqlite": true}

// Validate chequea los valores críticos. En prod exige las claves.
func (c *Config) Validate() error {
	var errs []error
	if !drivers[c.Storage.Driver] {
		errs = append(errs, fmt.Errorf("storage.driver %q: must be postgres, mysql or sqlite", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, errors.New("storage.dsn required"))
	}
	for name, d := range map[string]time.Duration{
		"tokens.default_validity":          c.Tokens.DefaultValidity,
		"tokens.activation_ttl":            c.Tokens.ActivationTTL,
		"tokens.reset_ttl":                 c.Tokens.ResetTTL,
		"tokens.sweep_interval":            c.Tokens.SweepInterval,
		"validation_code.default_validity": c.ValidationCode.DefaultValidity,
		"validation_code.max_validity":     c.ValidationCode.MaxValidity,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Tokens.IssueRetries < 1 {
		errs = append(errs, errors.New("tokens.issue_retries must be >= 1"))
	}
	if c.Tokens.TokenBytes < 16 {
		errs = append(errs, errors.New("tokens.token_bytes must be >= 16"))
	}
	if c.ValidationCode.MaxValidity < c.ValidationCode.DefaultValidity {
		errs = append(errs, errors.New("validation_code.max_validity must be >= default_validity"))
	}
	if c.ValidationCode.Length < 4 || c.ValidationCode.Length > 12 {
		errs = append(errs, errors.New("validation_code.length must be between 4 and 12"))
	}
	switch c.SMTP.TLS {
	case "auto", "starttls", "ssl", "none":
	default:
		errs = append(errs, fmt.Errorf("smtp.tls %q invalid", c.SMTP.TLS))
	}
	if c.IsProd() {
		if len(c.Tokens.HashKey) < 16 {
			errs = append(errs, errors.New("tokens.hash_key (TOKEN_HASH_KEY) must be at least 16 bytes in prod"))
		}
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp.host required in prod"))
		}
	}
	return errors.Join(errs...)
}

// IsProd indica si APP_ENV es prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
