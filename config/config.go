// Package config loads the service configuration from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stevemurr/docstore-api/store"
)

// Config is the full service configuration.
type Config struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Backend        string   `yaml:"backend"`
	DataDir        string   `yaml:"dataDir"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	StatusMessage  string   `yaml:"statusMessage"`
	LoggingLevel   string   `yaml:"loggingLevel"`
	Debug          bool     `yaml:"debug"`
	PostgresDSN    string   `yaml:"postgresDSN"`

	Firebase Firebase `yaml:"firebase"`
}

// Firebase holds the service account used by the firestore backend. Either
// CredentialsBase64, CredentialsFile or the individual fields may be set.
type Firebase struct {
	ProjectID         string `yaml:"projectId"`
	DatabaseID        string `yaml:"databaseId"`
	CredentialsBase64 string `yaml:"credentialsBase64"`
	CredentialsFile   string `yaml:"credentialsFile"`

	Type                    string `yaml:"type"`
	PrivateKeyID            string `yaml:"privateKeyId"`
	PrivateKey              string `yaml:"privateKey"`
	ClientEmail             string `yaml:"clientEmail"`
	ClientID                string `yaml:"clientId"`
	AuthURI                 string `yaml:"authUri"`
	TokenURI                string `yaml:"tokenUri"`
	AuthProviderX509CertURL string `yaml:"authProviderX509CertUrl"`
	ClientX509CertURL       string `yaml:"clientX509CertUrl"`
	UniverseDomain          string `yaml:"universeDomain"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Backend:        "firestore",
		DataDir:        "./data",
		AllowedOrigins: []string{"*"},
		StatusMessage:  "Firestore API is running",
		LoggingLevel:   "PRODUCTION",
		Firebase: Firebase{
			Type:           "service_account",
			UniverseDomain: "googleapis.com",
		},
	}
}

// Load builds a Config. path may be empty, in which case only defaults and
// the environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "reading config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config file %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

// first returns the first non-empty value among keys.
func first(lookup lookupFunc, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := lookup(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		if v, ok := first(lookup, keys...); ok {
			*dst = v
		}
	}

	str(&c.Host, "API_HOST", "HOST")
	if v, ok := first(lookup, "API_PORT", "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Errorf("invalid port %q", v)
		}
		c.Port = port
	}
	str(&c.Backend, "STORE_BACKEND")
	str(&c.DataDir, "DATA_DIR")
	if v, ok := first(lookup, "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	str(&c.StatusMessage, "STATUS_MESSAGE")
	str(&c.LoggingLevel, "LOGGING_LEVEL")
	if v, ok := first(lookup, "DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Errorf("invalid DEBUG value %q", v)
		}
		c.Debug = debug
	}
	str(&c.PostgresDSN, "POSTGRES_DSN")

	f := &c.Firebase
	str(&f.ProjectID, "FIREBASE_PROJECT_ID", "FIRESTORE_PROJECT_ID")
	str(&f.DatabaseID, "FIRESTORE_DATABASE_ID")
	str(&f.CredentialsBase64, "FIREBASE_CREDENTIALS_BASE64")
	str(&f.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	str(&f.Type, "FIREBASE_TYPE")
	str(&f.PrivateKeyID, "FIREBASE_PRIVATE_KEY_ID")
	str(&f.PrivateKey, "FIREBASE_PRIVATE_KEY")
	str(&f.ClientEmail, "FIREBASE_CLIENT_EMAIL")
	str(&f.ClientID, "FIREBASE_CLIENT_ID")
	str(&f.AuthURI, "FIREBASE_AUTH_URI")
	str(&f.TokenURI, "FIREBASE_TOKEN_URI")
	str(&f.AuthProviderX509CertURL, "FIREBASE_AUTH_PROVIDER_X509_CERT_URL")
	str(&f.ClientX509CertURL, "FIREBASE_CLIENT_X509_CERT_URL")
	str(&f.UniverseDomain, "FIREBASE_UNIVERSE_DOMAIN")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the server cannot start with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	switch c.Backend {
	case "firestore", "json", "sqlite", "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("postgres backend requires POSTGRES_DSN")
		}
	default:
		return errors.Errorf("unknown store backend %q", c.Backend)
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin is required")
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Development reports whether debug logging is requested.
func (c Config) Development() bool {
	return c.Debug || strings.EqualFold(c.LoggingLevel, "DEVELOPMENT")
}

// StoreOptions translates the configuration into store.Options.
func (c Config) StoreOptions() (store.Options, error) {
	creds, err := c.Firebase.credentialsJSON()
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{
		Backend:     c.Backend,
		DataDir:     c.DataDir,
		PostgresDSN: c.PostgresDSN,
		Firestore: store.FirestoreOptions{
			ProjectID:       c.Firebase.ProjectID,
			DatabaseID:      c.Firebase.DatabaseID,
			CredentialsFile: c.Firebase.CredentialsFile,
			CredentialsJSON: creds,
		},
	}, nil
}

// credentialsJSON returns the service account document, or nil when the
// client should fall back to a credentials file or application default
// credentials.
func (f Firebase) credentialsJSON() ([]byte, error) {
	if f.CredentialsBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(f.CredentialsBase64))
		if err != nil {
			return nil, errors.Wrap(err, "decoding FIREBASE_CREDENTIALS_BASE64")
		}
		if !json.Valid(raw) {
			return nil, errors.New("FIREBASE_CREDENTIALS_BASE64 does not hold a JSON document")
		}
		return raw, nil
	}
	if f.PrivateKey == "" || f.ClientEmail == "" {
		return nil, nil
	}

	// Env files usually carry the key with escaped newlines.
	key := strings.ReplaceAll(f.PrivateKey, `\n`, "\n")
	account := map[string]string{
		"type":                        f.Type,
		"project_id":                  f.ProjectID,
		"private_key_id":              f.PrivateKeyID,
		"private_key":                 key,
		"client_email":                f.ClientEmail,
		"client_id":                   f.ClientID,
		"auth_uri":                    f.AuthURI,
		"token_uri":                   f.TokenURI,
		"auth_provider_x509_cert_url": f.AuthProviderX509CertURL,
		"client_x509_cert_url":        f.ClientX509CertURL,
		"universe_domain":             f.UniverseDomain,
	}
	return json.Marshal(account)
}
