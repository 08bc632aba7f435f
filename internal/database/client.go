package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/pfmforecast/internal/log"
)

// Client holds the connection to a TimescaleDB database
type Client struct {
	connectionString string
	DB               *gorm.DB // Exported so it can be accessed from other packages
	logger           *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(connectionString string, logger *zap.SugaredLogger) *Client {
	return &Client{
		connectionString: connectionString,
		logger:           logger,
	}
}

// Connect connects to the TimescaleDB database
func (c *Client) Connect() error {
	target, err := Describe(c.connectionString)
	if err != nil {
		return err
	}

	c.logger.Infof("connecting to TimescaleDB at %s...", target)
	c.DB, err = CreateConnection(c.connectionString)
	if err != nil {
		c.logger.Warnf("unable to create a TimescaleDB connection: %v", err)
		return err
	}
	c.logger.Info("TimescaleDB connection successful")
	return nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping() error {
	if c.DB == nil {
		return fmt.Errorf("not connected")
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Describe validates a connection string and returns a loggable summary of
// where it points, without the password.
func Describe(connectionString string) (string, error) {
	cfg, err := pgx.ParseConfig(connectionString)
	if err != nil {
		return "", fmt.Errorf("invalid TimescaleDB connection string: %w", err)
	}
	return fmt.Sprintf("%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database), nil
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, err
	}
	return db, nil
}
