// Package config provides configuration loading and validation for gallery.
//
// Configuration comes in two halves. The ambient half (ports, table names,
// log level, storage backend) is loaded by Load from YAML, environment
// variables and CLI flags. The secret half (database URL, bucket, CDN domain,
// credentials) is produced once at boot by a Resolver as an immutable Settings
// value.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (GALLERY_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	settings, err := config.NewResolver().Resolve(ctx, cfg.Mode())
//	if err != nil {
//	    slog.Error("resolve settings", "err", err, "hint", config.Hint(err))
//	    os.Exit(1)
//	}
//
// # Resolver Modes
//
// Development reads .env (if present) and the process environment and
// requires DATABASE_URL, STORAGE_REGION, STORAGE_BUCKET, CDN_DOMAIN,
// STORAGE_ACCESS_KEY_ID and STORAGE_SECRET_ACCESS_KEY. STORAGE_ENDPOINT is
// optional.
//
// Production requires APP_CONFIG_SECRET_NAME and reads that secret from AWS
// Secrets Manager using the instance identity, assuming APP_ROLE_ARN first
// when set. The secret is a JSON object with DATABASE_URL, STORAGE_REGION,
// STORAGE_BUCKET, CDN_DOMAIN and optionally STORAGE_ENDPOINT.
//
// # Environment Variables
//
// All ambient config keys map to environment variables with GALLERY_ prefix:
//   - env → GALLERY_ENV
//   - server.port → GALLERY_SERVER_PORT
//   - database.type → GALLERY_DATABASE_TYPE
//   - storage.backend → GALLERY_STORAGE_BACKEND
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Env must be development, production or prod
//   - Port must be 1-65535
//   - Storage backend must be s3 or filesystem
//   - Database type must be empty, sqlite or postgres
//   - Log level must be debug, info, warn, or error
//
// Table names are checked with gallery.Tables.Validate.
package config
