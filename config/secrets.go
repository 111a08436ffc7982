package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

var (
	// ErrSecretNotFound is returned when the named secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrSecretAccessDenied is returned when the identity may not read the secret.
	ErrSecretAccessDenied = errors.New("secret access denied")
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerFetcher reads secrets from AWS Secrets Manager.
type SecretsManagerFetcher struct {
	client SecretsManagerAPI
}

func NewSecretsManagerFetcher(client SecretsManagerAPI) *SecretsManagerFetcher {
	return &SecretsManagerFetcher{client: client}
}

// NewAWSSecretFetcher builds a fetcher from the ambient AWS identity,
// assuming roleARN first when it is set. An empty region falls back to the
// SDK's own region resolution.
func NewAWSSecretFetcher(ctx context.Context, region, roleARN string) (SecretFetcher, error) {
	cfg, err := LoadAWSConfig(ctx, AWSOptions{Region: region, RoleARN: roleARN})
	if err != nil {
		return nil, err
	}
	return NewSecretsManagerFetcher(secretsmanager.NewFromConfig(cfg)), nil
}

// FetchSecret returns the current string value of the secret.
//
// Returns:
//   - string: The SecretString
//   - error: ErrSecretNotFound, ErrSecretAccessDenied, ErrInvalidSecret for
//     binary-only secrets, or the SDK error
func (f *SecretsManagerFetcher) FetchSecret(ctx context.Context, name string) (string, error) {
	out, err := f.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", classifySecretError(err))
	}

	if out.SecretString == nil {
		return "", fmt.Errorf("%w: %s has no string value", ErrInvalidSecret, name)
	}

	return aws.ToString(out.SecretString), nil
}

func classifySecretError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "ResourceNotFoundException":
		return fmt.Errorf("%w: %w", ErrSecretNotFound, err)
	case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException", "ExpiredTokenException":
		return fmt.Errorf("%w: %w", ErrSecretAccessDenied, err)
	default:
		return err
	}
}

// Hint returns an operator-facing suggestion for a Resolve error, or an
// empty string when there is nothing specific to say.
func Hint(err error) string {
	var missing *MissingEnvError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingSecretName):
		return "set " + EnvSecretName + " to the Secrets Manager secret holding the app config, or run with GALLERY_ENV=development"
	case errors.Is(err, ErrSecretNotFound):
		return "check the secret name and " + EnvSecretsRegion + "; the secret must exist in that region"
	case errors.Is(err, ErrSecretAccessDenied):
		return "grant secretsmanager:GetSecretValue on the secret to the instance role or to " + EnvRoleARN
	case errors.Is(err, ErrSecretUnavailable):
		return "check network access to Secrets Manager and that the instance role credentials are available"
	case errors.Is(err, ErrInvalidSecret):
		return "the secret must be a JSON object with DATABASE_URL, STORAGE_REGION, STORAGE_BUCKET and CDN_DOMAIN"
	case errors.As(err, &missing):
		return "set the missing variables in the environment or in a .env file"
	default:
		return ""
	}
}
