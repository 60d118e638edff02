// Command apikey-gen creates an admin API key, stores its HMAC-SHA256 hash in
// the database, and prints the plaintext key once. The plaintext is never
// stored; keep the printed value safe.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/auth"
	"github.com/sajjadh47/securionpay-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		name        string
		scopes      string
		pepper      string
		key         string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&name, "name", "", "human-readable key name")
	flag.StringVar(&scopes, "scopes", auth.ScopeRefunds, "comma-separated scopes to grant")
	flag.StringVar(&pepper, "pepper", "", "HMAC pepper for API key hashing (or SPAY_API_KEY_PEPPER env)")
	flag.StringVar(&key, "key", "", "register this exact key instead of generating one")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if name == "" {
		slog.Error("key name is required: set --name")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("SPAY_API_KEY_PEPPER")
	}
	if pepper == "" {
		slog.Error("pepper is required: set --pepper or SPAY_API_KEY_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	key, err := run(ctx, databaseURL, name, scopes, pepper, key)
	if err != nil {
		slog.Error("key generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("api key created", slog.String("name", name), slog.String("scopes", scopes))
	fmt.Println(key)
}

func run(ctx context.Context, databaseURL, name, scopes, pepper, key string) (string, error) {
	if key == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return "", errors.Wrap(err, "generate key material")
		}
		key = "spay_" + hex.EncodeToString(raw)
	}

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	hash := hex.EncodeToString(mac.Sum(nil))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return "", errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return "", errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewAPIKeyRepository(pool)
	info := auth.APIKeyInfo{
		ID:      uuid.NewString(),
		KeyHash: hash,
		Name:    name,
		Scopes:  splitScopes(scopes),
	}
	if err := repo.Create(ctx, info); err != nil {
		return "", errors.Wrap(err, "store api key")
	}

	return key, nil
}

func splitScopes(s string) []string {
	var out []string
	for _, scope := range strings.Split(s, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			out = append(out, scope)
		}
	}
	return out
}
