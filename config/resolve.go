package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode selects where the Resolver reads credentials from.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode converts an env value to a Mode. "prod" is accepted for
// production and an empty value means development.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development", "dev":
		return ModeDevelopment, nil
	case "production", "prod":
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("parse mode: unknown mode %q (must be development or production)", s)
	}
}

// Environment variables read by the Resolver.
const (
	EnvSecretName         = "APP_CONFIG_SECRET_NAME"
	EnvRoleARN            = "APP_ROLE_ARN"
	EnvSecretsRegion      = "SECRETS_REGION"
	EnvDatabaseURL        = "DATABASE_URL"
	EnvStorageRegion      = "STORAGE_REGION"
	EnvStorageBucket      = "STORAGE_BUCKET"
	EnvStorageEndpoint    = "STORAGE_ENDPOINT"
	EnvStorageAccessKeyID = "STORAGE_ACCESS_KEY_ID"
	EnvStorageSecretKey   = "STORAGE_SECRET_ACCESS_KEY"
	EnvCDNDomain          = "CDN_DOMAIN"
)

var (
	// ErrMissingSecretName is returned in production when APP_CONFIG_SECRET_NAME is unset.
	ErrMissingSecretName = errors.New(EnvSecretName + " is not set")
	// ErrSecretUnavailable is returned when the secret cannot be fetched.
	ErrSecretUnavailable = errors.New("secret unavailable")
	// ErrInvalidSecret is returned when the secret is not the expected JSON bundle.
	ErrInvalidSecret = errors.New("invalid secret")
	// ErrMissingEnv is matched by MissingEnvError.
	ErrMissingEnv = errors.New("missing environment variables")
)

// MissingEnvError lists every required variable that was unset or empty.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return ErrMissingEnv.Error() + ": " + strings.Join(e.Keys, ", ")
}

func (e *MissingEnvError) Unwrap() error {
	return ErrMissingEnv
}

// StorageSettings locates the bucket. The static keys are only set in
// development; production uses the ambient identity.
type StorageSettings struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// HasStaticCredentials reports whether both static keys are present.
func (s StorageSettings) HasStaticCredentials() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// Settings is the resolved runtime configuration. It is built once at boot
// and never modified.
type Settings struct {
	Mode        Mode
	DatabaseURL string
	Storage     StorageSettings
	CDNDomain   string
	RoleARN     string
}

// SecretFetcher returns the string value of a named secret.
type SecretFetcher interface {
	FetchSecret(ctx context.Context, name string) (string, error)
}

// Resolver turns the process environment into Settings.
type Resolver struct {
	// Lookup reads variables. Defaults to os.LookupEnv.
	Lookup LookupFunc
	// NewSecretFetcher builds the production secret client for a region
	// and optional role to assume. Defaults to NewAWSSecretFetcher.
	NewSecretFetcher func(ctx context.Context, region, roleARN string) (SecretFetcher, error)
	// DotEnvFiles are read in development. Missing files are skipped and
	// real environment variables win over file values.
	DotEnvFiles []string
	// SkipStorageCredentials drops the static key requirement in
	// development, for the filesystem storage backend.
	SkipStorageCredentials bool
}

// NewResolver returns a Resolver over the process environment and AWS
// Secrets Manager.
func NewResolver() *Resolver {
	return &Resolver{
		Lookup:           os.LookupEnv,
		NewSecretFetcher: NewAWSSecretFetcher,
		DotEnvFiles:      []string{".env"},
	}
}

// Resolve builds Settings for mode. Every failure is fatal for boot; the
// returned error matches one of ErrMissingSecretName, ErrSecretUnavailable,
// ErrInvalidSecret or ErrMissingEnv.
func (r *Resolver) Resolve(ctx context.Context, mode Mode) (Settings, error) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	switch mode {
	case ModeProduction:
		return r.resolveProduction(ctx, lookup)
	case ModeDevelopment, "":
		return r.resolveDevelopment(lookup)
	default:
		return Settings{}, fmt.Errorf("resolve: unknown mode %q", mode)
	}
}

func (r *Resolver) resolveProduction(ctx context.Context, lookup LookupFunc) (Settings, error) {
	secretName := get(lookup, EnvSecretName)
	if secretName == "" {
		return Settings{}, fmt.Errorf("resolve: %w", ErrMissingSecretName)
	}
	roleARN := get(lookup, EnvRoleARN)
	region := get(lookup, EnvSecretsRegion)

	newFetcher := r.NewSecretFetcher
	if newFetcher == nil {
		newFetcher = NewAWSSecretFetcher
	}

	fetcher, err := newFetcher(ctx, region, roleARN)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve: %w: create secrets client: %w", ErrSecretUnavailable, err)
	}

	raw, err := fetcher.FetchSecret(ctx, secretName)
	if err != nil {
		if errors.Is(err, ErrInvalidSecret) {
			return Settings{}, fmt.Errorf("resolve: %w", err)
		}
		return Settings{}, fmt.Errorf("resolve: %w: %s: %w", ErrSecretUnavailable, secretName, err)
	}

	bundle, err := parseSecretBundle(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve: %s: %w", secretName, err)
	}

	return Settings{
		Mode:        ModeProduction,
		DatabaseURL: bundle.DatabaseURL,
		Storage: StorageSettings{
			Region:   bundle.StorageRegion,
			Bucket:   bundle.StorageBucket,
			Endpoint: bundle.StorageEndpoint,
		},
		CDNDomain: bundle.CDNDomain,
		RoleARN:   roleARN,
	}, nil
}

func (r *Resolver) resolveDevelopment(lookup LookupFunc) (Settings, error) {
	dotenv, err := readDotEnv(r.DotEnvFiles)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve: %w", err)
	}

	env := func(key string) string {
		if v := get(lookup, key); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}

	required := []string{EnvDatabaseURL, EnvStorageRegion, EnvStorageBucket, EnvCDNDomain}
	if !r.SkipStorageCredentials {
		required = append(required, EnvStorageAccessKeyID, EnvStorageSecretKey)
	}

	var missing []string
	for _, key := range required {
		if env(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Settings{}, fmt.Errorf("resolve: %w", &MissingEnvError{Keys: missing})
	}

	return Settings{
		Mode:        ModeDevelopment,
		DatabaseURL: env(EnvDatabaseURL),
		Storage: StorageSettings{
			Region:          env(EnvStorageRegion),
			Bucket:          env(EnvStorageBucket),
			Endpoint:        env(EnvStorageEndpoint),
			AccessKeyID:     env(EnvStorageAccessKeyID),
			SecretAccessKey: env(EnvStorageSecretKey),
		},
		CDNDomain: env(EnvCDNDomain),
	}, nil
}

type secretBundle struct {
	DatabaseURL     string `json:"DATABASE_URL" validate:"required"`
	StorageRegion   string `json:"STORAGE_REGION" validate:"required"`
	StorageBucket   string `json:"STORAGE_BUCKET" validate:"required"`
	CDNDomain       string `json:"CDN_DOMAIN" validate:"required"`
	StorageEndpoint string `json:"STORAGE_ENDPOINT"`
}

var bundleValidator = newBundleValidator()

func newBundleValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

func parseSecretBundle(raw string) (secretBundle, error) {
	var b secretBundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return secretBundle{}, fmt.Errorf("%w: not a JSON object: %w", ErrInvalidSecret, err)
	}

	b.DatabaseURL = strings.TrimSpace(b.DatabaseURL)
	b.StorageRegion = strings.TrimSpace(b.StorageRegion)
	b.StorageBucket = strings.TrimSpace(b.StorageBucket)
	b.CDNDomain = strings.TrimSpace(b.CDNDomain)
	b.StorageEndpoint = strings.TrimSpace(b.StorageEndpoint)

	if err := bundleValidator.Struct(&b); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return secretBundle{}, fmt.Errorf("%w: %w", ErrInvalidSecret, err)
		}

		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		slices.Sort(fields)
		return secretBundle{}, fmt.Errorf("%w: missing fields: %s", ErrInvalidSecret, strings.Join(fields, ", "))
	}

	return b, nil
}
