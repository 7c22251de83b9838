package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/pkg/logging"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LoadEnv loads the env files that exist, looking in the working directory
// first and in the nearest go.mod root otherwise.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root := moduleRoot(); root != "" {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, files []string) []string {
	out := make([]string, 0, len(files))
	for _, file := range files {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Driver     string `env:"DB_DRIVER" envDefault:"sqlite"`
	Name       string `env:"DB_NAME" envDefault:"classbook"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./classbook.db"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type S3Options struct {
	Bucket          string `env:"BACKUP_S3_BUCKET"`
	Region          string `env:"BACKUP_S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"BACKUP_S3_ENDPOINT"`
	PathStyle       bool   `env:"BACKUP_S3_PATH_STYLE" envDefault:"false"`
	AccessKeyID     string `env:"BACKUP_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"BACKUP_S3_SECRET_ACCESS_KEY"`
}

type BackupOptions struct {
	Driver string `env:"BACKUP_DRIVER" envDefault:"fs"`
	Root   string `env:"BACKUP_ROOT" envDefault:"./backups"`
	Prefix string `env:"BACKUP_PREFIX" envDefault:"backups/"`
	S3     S3Options
}

// OwnerOptions describes the owner principal seeded before any class.
type OwnerOptions struct {
	ID    string `env:"OWNER_ID" envDefault:"owner"`
	Name  string `env:"OWNER_NAME" envDefault:"Classbook Owner"`
	Email string `env:"OWNER_EMAIL" envDefault:"owner@classbook.local"`
}

type MigrationOptions struct {
	TxTimeout       time.Duration `env:"MIGRATION_TX_TIMEOUT" envDefault:"30m"`
	AuditLogPath    string        `env:"AUDIT_LOG_PATH" envDefault:"./logs/migration_audit.log"`
	MetricsTextfile string        `env:"METRICS_TEXTFILE"`
}

type Configuration struct {
	Database  DatabaseOptions
	Backup    BackupOptions
	Owner     OwnerOptions
	Migration MigrationOptions

	LogLevel string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath  string `env:"LOG_PATH" envDefault:"./logs/classbook.log"`

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

// Load builds a Configuration from the process environment after loading
// envFiles.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
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
	if err := c.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

func (c *Configuration) validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid DB_DRIVER=%q (expected postgres|sqlite)", c.Database.Driver)
	}

	c.Backup.Driver = strings.ToLower(strings.TrimSpace(c.Backup.Driver))
	switch c.Backup.Driver {
	case "fs", "memory":
	case "s3":
		if strings.TrimSpace(c.Backup.S3.Bucket) == "" {
			return fmt.Errorf("BACKUP_S3_BUCKET is required when BACKUP_DRIVER=s3")
		}
	default:
		return fmt.Errorf("invalid BACKUP_DRIVER=%q (expected fs|s3|memory)", c.Backup.Driver)
	}
	if c.Backup.Prefix != "" && !strings.HasSuffix(c.Backup.Prefix, "/") {
		c.Backup.Prefix += "/"
	}

	if strings.TrimSpace(c.Owner.ID) == "" {
		return fmt.Errorf("OWNER_ID must not be empty")
	}
	if c.Migration.TxTimeout <= 0 {
		return fmt.Errorf("MIGRATION_TX_TIMEOUT must be positive, got %s", c.Migration.TxTimeout)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
		c.logFile = nil
	}
}
