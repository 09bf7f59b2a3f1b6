package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pipetrak/pipetrak/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"pipetrak"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

// Values of ImportOptions.UnmatchedPolicy.
const (
	UnmatchedMisc   = "misc"
	UnmatchedReject = "reject"
)

// ImportOptions tune the takeoff import pipeline.
type ImportOptions struct {
	// SimilarityThreshold is the minimum Dice score for a drawing number to be
	// reported as a near duplicate of an existing one.
	SimilarityThreshold float64 `env:"IMPORT_SIMILARITY_THRESHOLD" envDefault:"0.85"`
	// SimilarityLimit caps how many near duplicates are reported per drawing.
	SimilarityLimit int `env:"IMPORT_SIMILARITY_LIMIT" envDefault:"3"`
	// UnmatchedPolicy decides what happens to rows whose type keyword matches no
	// known component type: "misc" classifies them as misc, "reject" fails the row.
	UnmatchedPolicy string `env:"IMPORT_UNMATCHED_POLICY" envDefault:"misc"`
	// ExcludedKeywords lists type keywords dropped before identity resolution.
	ExcludedKeywords []string `env:"IMPORT_EXCLUDED_KEYWORDS" envDefault:"gasket,bolt" envSeparator:","`
	// DeltaCoalesceWindow merges quantity-delta exceptions for the same identity
	// group raised within this window into one exception with a summed delta.
	DeltaCoalesceWindow time.Duration `env:"IMPORT_DELTA_COALESCE_WINDOW" envDefault:"24h"`
}

func (o *ImportOptions) Validate() error {
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		return fmt.Errorf("IMPORT_SIMILARITY_THRESHOLD must be in (0, 1], got %v", o.SimilarityThreshold)
	}
	if o.SimilarityLimit <= 0 {
		return fmt.Errorf("IMPORT_SIMILARITY_LIMIT must be positive, got %d", o.SimilarityLimit)
	}
	switch o.UnmatchedPolicy {
	case UnmatchedMisc, UnmatchedReject:
	default:
		return fmt.Errorf("invalid IMPORT_UNMATCHED_POLICY=%q (expected misc|reject)", o.UnmatchedPolicy)
	}
	return nil
}

type Configuration struct {
	Database   DatabaseOptions
	Prometheus PrometheusOptions
	Import     ImportOptions

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	PageSize         int    `env:"PAGE_SIZE" envDefault:"25"`
	MaxPageSize      int    `env:"MAX_PAGE_SIZE" envDefault:"100"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	RequestIDHeader  string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader     string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	c.Import.UnmatchedPolicy = strings.ToLower(strings.TrimSpace(c.Import.UnmatchedPolicy))
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
