package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/barricade/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "barricade.sqlite3"

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type DBClient struct {
	DB     *gorm.DB
	db     *sql.DB
	driver string
}

// NewDBClient opens the database named by BARRICADE_DB_PATH, or the default file.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("BARRICADE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to the database with the given driver. For sqlite dsn is a
// file path, optionally with query parameters, for mysql a go-sql-driver DSN.
func Open(driver, dsn string) (*DBClient, error) {
	const op errors.Op = "storage.Open"

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		driver = DriverSQLite
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.E(op, errors.PersistenceError, fmt.Errorf("creating db dir: %w", err))
			}
		}
		dialector = sqlite.Open(sqliteDSN(dsn))
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, errors.E(op, errors.StorageUnknown, errors.Info(driver))
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, errors.E(op, errors.PersistenceError, fmt.Errorf("opening %s db: %w", driver, err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.E(op, errors.PersistenceError, fmt.Errorf("getting sql.DB from gorm: %w", err))
	}

	if driver == DriverSQLite {
		// a single connection keeps sqlite writers from tripping over each other
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Concert{}, &Song{}, &Track{}, &Fingerprint{}); err != nil {
		sqlDB.Close()
		return nil, errors.E(op, errors.PersistenceError, fmt.Errorf("auto migrate: %w", err))
	}

	return &DBClient{DB: db, db: sqlDB, driver: driver}, nil
}

func (c *DBClient) Driver() string {
	return c.driver
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// wrapErr maps gorm errors onto our error kinds.
// sqliteDSN adds the pragmas every connection needs to dsn.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// sqlitePath is the file a sqlite dsn points at.
func sqlitePath(dsn string) string {
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return strings.TrimPrefix(dsn, "file:")
}

func wrapErr(op errors.Op, notFound errors.Kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsE(err, gorm.ErrRecordNotFound) {
		return errors.E(op, notFound, errors.ID(id))
	}
	return errors.E(op, errors.PersistenceError, errors.ID(id), err)
}

func errNilClient(op errors.Op) error {
	return errors.E(op, errors.PersistenceError, "db client is nil")
}
