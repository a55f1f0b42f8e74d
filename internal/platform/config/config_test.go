package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.MutationRateLimit != 30 {
		t.Errorf("expected mutation rate limit 30, got %d", cfg.Server.MutationRateLimit)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Errorf("expected memory storage by default, got %s", cfg.Storage.Driver)
	}
	if cfg.Notifications.Driver != NotifyDriverLog {
		t.Errorf("expected log notifier by default, got %s", cfg.Notifications.Driver)
	}
	if cfg.Orders.CancelWindow != 30*time.Minute {
		t.Errorf("expected 30m cancel window, got %s", cfg.Orders.CancelWindow)
	}
	if cfg.Orders.NumberPrefix != "HT" || cfg.Orders.Currency != "VND" {
		t.Errorf("unexpected order defaults: %+v", cfg.Orders)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatchSize {
		t.Errorf("unexpected default cleanup batch size: %d", cfg.Idempotency.CleanupBatchSize)
	}
	if cfg.Postgres.MaxConns != defaultPostgresMaxConns || !cfg.Postgres.MigrateOnStart {
		t.Errorf("unexpected postgres defaults: %+v", cfg.Postgres)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "20s",
		"API_STORAGE_DRIVER":            "Postgres",
		"API_POSTGRES_DSN":              "secret://postgres/dsn",
		"API_POSTGRES_MAX_CONNS":        "25",
		"API_POSTGRES_MIGRATE_ON_START": "off",
		"API_FIRESTORE_PROJECT_ID":      "hometech-prod",
		"API_REDIS_ADDR":                "redis:6379",
		"API_REDIS_PASSWORD":            "secret://redis/password",
		"API_REDIS_DB":                  "2",
		"API_NOTIFY_DRIVER":             "pubsub",
		"API_NOTIFY_TOPIC":              "orders",
		"API_VNPAY_TMN_CODE":            "TMN01",
		"API_VNPAY_HASH_SECRET":         "secret://vnpay/hash",
		"API_STRIPE_API_KEY":            "secret://stripe/api",
		"API_ORDERS_CANCEL_WINDOW":      "45m",
		"API_ORDERS_CURRENCY":           "usd",
	}

	secrets := map[string]string{
		"secret://postgres/dsn":   "postgres://app@db/hometech",
		"secret://redis/password": "redis-pass",
		"secret://vnpay/hash":     "vnpay-secret",
		"secret://stripe/api":     "sk_live_123",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if value, ok := secrets[ref]; ok {
			return value, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Errorf("expected postgres driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Postgres.DSN != "postgres://app@db/hometech" || cfg.Postgres.MaxConns != 25 || cfg.Postgres.MigrateOnStart {
		t.Errorf("unexpected postgres config: %+v", cfg.Postgres)
	}
	if cfg.Redis.Password != "redis-pass" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Notifications.ProjectID != "hometech-prod" {
		t.Errorf("expected notification project to default to firestore project, got %s", cfg.Notifications.ProjectID)
	}
	if cfg.Secrets.ProjectID != "hometech-prod" {
		t.Errorf("expected secrets project to default to firestore project, got %s", cfg.Secrets.ProjectID)
	}
	if cfg.Payments.VNPay.HashSecret != "vnpay-secret" || cfg.Payments.Stripe.APIKey != "sk_live_123" {
		t.Errorf("secrets not resolved: %+v", cfg.Payments)
	}
	if cfg.Orders.CancelWindow != 45*time.Minute || cfg.Orders.Currency != "USD" {
		t.Errorf("unexpected orders config: %+v", cfg.Orders)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nAPI_SERVER_PORT=7070\nexport API_ORDERS_NUMBER_PREFIX=\"HTX\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Orders.NumberPrefix != "HTX" {
		t.Errorf("expected prefix from dotenv, got %s", cfg.Orders.NumberPrefix)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "absent.env")), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}

func TestLoadDriverRequirements(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"firestore without project", map[string]string{"API_STORAGE_DRIVER": "firestore"}, "Firestore.ProjectID"},
		{"postgres without dsn", map[string]string{"API_STORAGE_DRIVER": "postgres"}, "Postgres.DSN"},
		{"unknown driver", map[string]string{"API_STORAGE_DRIVER": "mongo"}, "Storage.Driver"},
		{"nats without url", map[string]string{"API_NOTIFY_DRIVER": "nats"}, "Notifications.NATSURL"},
		{"pubsub without project", map[string]string{"API_NOTIFY_DRIVER": "pubsub"}, "Notifications.ProjectID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, field := range validation.Fields() {
				if field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %s in %v", tc.field, validation.Fields())
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_STRIPE_API_KEY": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestLookupValueMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SECRETS_PROJECT_ID=dot-project\nAPI_SECRETS_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_SECRETS_PROJECT_ID", "os-project")

	got, err := LookupValue("API_SECRETS_PROJECT_ID", WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("LookupValue returned error: %v", err)
	}
	if got != "os-project" {
		t.Fatalf("expected system env to win over dotenv, got %s", got)
	}

	got, err = LookupValue("API_SECRETS_PROJECT_ID", WithEnvFile(envPath), WithEnvMap(map[string]string{"API_SECRETS_PROJECT_ID": "override"}))
	if err != nil {
		t.Fatalf("LookupValue returned error: %v", err)
	}
	if got != "override" {
		t.Fatalf("expected explicit map to win, got %s", got)
	}

	got, err = LookupValue("API_SECRETS_FALLBACK_FILE", WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("LookupValue returned error: %v", err)
	}
	if got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(map[string]string{}),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Payments.VNPay.HashSecret"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Payments.VNPay.HashSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
	if got := missing.Names(); len(got) != 1 || got[0] != "Payments.VNPay.HashSecret" {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_VNPAY_HASH_SECRET": "sm://vnpay/hash",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://vnpay/hash" {
			return "legacy-secret", nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Payments.VNPay.HashSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Payments.VNPay.HashSecret)
	}
}
