package itf

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/pipetrak/pipetrak/modules"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/eventbus"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

func NewPool(dbOpts string) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	config, err := pgxpool.ParseConfig(dbOpts)
	if err != nil {
		panic(err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Minute * 5
	config.MaxConnIdleTime = time.Second * 30

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		panic(fmt.Errorf("failed to create database pool: %w", err))
	}

	return pool
}

// DatabaseManager handles database lifecycle for tests
type DatabaseManager struct {
	pool   *pgxpool.Pool
	dbName string
}

// NewDatabaseManager creates a new database and returns a manager that handles cleanup automatically
func NewDatabaseManager(t *testing.T) *DatabaseManager {
	t.Helper()

	dbName := t.Name()
	CreateDB(dbName)
	pool := NewPool(DbOpts(dbName))

	dm := &DatabaseManager{
		pool:   pool,
		dbName: dbName,
	}

	t.Cleanup(func() {
		dm.Close()
	})

	return dm
}

// Pool returns the database pool
func (dm *DatabaseManager) Pool() *pgxpool.Pool {
	return dm.pool
}

// Close closes the pool
func (dm *DatabaseManager) Close() {
	if dm.pool != nil {
		dm.pool.Close()
		dm.pool = nil
	}
}

func DefaultParams() *composables.Params {
	return &composables.Params{
		IP:            "",
		UserAgent:     "",
		Authenticated: true,
		Request:       nil,
		Writer:        nil,
	}
}

const (
	// PostgreSQL database name maximum length is 63 characters
	maxDBNameLength = 63
	// Reserve space for hash suffix when truncating (8 chars + underscore)
	hashSuffixLength = 9
)

// sanitizeDBName replaces special characters in database names with underscores
// and ensures the name doesn't exceed PostgreSQL's 63-character limit
func sanitizeDBName(name string) string {
	sanitized := strings.ToLower(name)

	sanitized = strings.ReplaceAll(sanitized, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "-", "_")
	sanitized = strings.ReplaceAll(sanitized, ".", "_")
	sanitized = strings.ReplaceAll(sanitized, "(", "_")
	sanitized = strings.ReplaceAll(sanitized, ")", "_")
	sanitized = strings.ReplaceAll(sanitized, "[", "_")
	sanitized = strings.ReplaceAll(sanitized, "]", "_")

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		sanitized = "test_db"
	}

	if len(sanitized) <= maxDBNameLength {
		return sanitized
	}

	return truncateWithHash(sanitized, name)
}

// truncateWithHash truncates a database name and adds a hash suffix for uniqueness
func truncateWithHash(sanitized, original string) string {
	hasher := sha256.New()
	hasher.Write([]byte(original))
	hash := fmt.Sprintf("%x", hasher.Sum(nil))[:8]

	maxNameLength := maxDBNameLength - hashSuffixLength

	truncated := intelligentTruncate(sanitized, maxNameLength)

	return fmt.Sprintf("%s_%s", truncated, hash)
}

// intelligentTruncate tries to keep the most meaningful parts of a test name
func intelligentTruncate(name string, maxLength int) string {
	if len(name) <= maxLength {
		return name
	}

	parts := strings.Split(name, "_")

	if len(parts) > 1 {
		first := parts[0]
		last := parts[len(parts)-1]

		combined := first + "_" + last
		if len(combined) <= maxLength && first != last {
			return combined
		}

		if len(first) <= maxLength/2 {
			result := first
			remaining := maxLength - len(first) - 1

			for i := 1; i < len(parts) && len(result) < maxLength; i++ {
				part := parts[i]
				if len(part)+1 <= remaining {
					result += "_" + part
					remaining -= len(part) + 1
				} else {
					if remaining > 4 {
						result += "_" + part[:remaining-1]
					}
					break
				}
			}
			return result
		}
	}

	return name[:maxLength]
}

func CreateDB(name string) {
	sanitizedName := sanitizeDBName(name)

	c := configuration.Use()
	adminConnStr := fmt.Sprintf(
		"host=%s port=%s user=%s dbname=postgres password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
	)
	db, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[WARNING] Error closing CreateDB connection: %v", err)
		}
	}()
	_, err = db.ExecContext(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", sanitizedName))
	if err != nil {
		panic(err)
	}
	_, err = db.ExecContext(context.Background(), fmt.Sprintf("CREATE DATABASE %s", sanitizedName))
	if err != nil {
		panic(err)
	}
}

func DbOpts(name string) string {
	sanitizedName := sanitizeDBName(name)

	c := configuration.Use()
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, strings.ToLower(sanitizedName), c.Database.Password,
	)
}

func SetupApplication(pool *pgxpool.Pool, mods ...application.Module) (application.Application, error) {
	conf := configuration.Use()
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(conf.Logger()),
		Logger:   conf.Logger(),
	})
	if err := modules.Load(app, mods...); err != nil {
		return nil, err
	}
	if err := app.Migrations().Run(); err != nil {
		return nil, err
	}
	return app, nil
}
