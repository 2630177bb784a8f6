package db

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSNInfo is a password-free description of a database DSN used for startup logging.
type DSNInfo struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

// String renders the DSN description without credentials.
func (i DSNInfo) String() string {
	if i.Type == DialectSQLite {
		return "sqlite:" + i.Path
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", i.User, i.Host, i.Port, i.Name, i.SSLMode)
}

// DescribeDSN parses a postgres URL or a sqlite file DSN.
func DescribeDSN(dsn string) (DSNInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return DSNInfo{}, fmt.Errorf("db: empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") || strings.HasPrefix(lowered, "sqlite:") {
		_, pathPart, _ := strings.Cut(trimmed, ":")
		pathPart = strings.TrimPrefix(pathPart, "//")
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return DSNInfo{Type: DialectSQLite, Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return DSNInfo{}, fmt.Errorf("db: parse dsn: %w", errParse)
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return DSNInfo{}, fmt.Errorf("db: parse port: %w", errPort)
			}
			port = parsedPort
		}
		info := DSNInfo{
			Type: DialectPostgres,
			Host: strings.TrimSpace(u.Hostname()),
			Port: port,
			Name: strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
		}
		if u.User != nil {
			info.User = strings.TrimSpace(u.User.Username())
			_, info.PasswordSet = u.User.Password()
		}
		info.SSLMode = strings.TrimSpace(u.Query().Get("sslmode"))
		if info.SSLMode == "" {
			info.SSLMode = "disable"
		}
		return info, nil
	default:
		return DSNInfo{}, fmt.Errorf("db: unsupported dsn scheme %q", u.Scheme)
	}
}

// Open connects to the database named by dsn using the matching gorm driver.
func Open(dsn string) (*gorm.DB, error) {
	info, errDescribe := DescribeDSN(dsn)
	if errDescribe != nil {
		return nil, errDescribe
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch info.Type {
	case DialectSQLite:
		sqliteDSN := strings.TrimSpace(dsn)
		if strings.HasPrefix(strings.ToLower(sqliteDSN), "sqlite:") {
			_, rest, _ := strings.Cut(sqliteDSN, ":")
			sqliteDSN = "file:" + strings.TrimPrefix(rest, "//")
		}
		dialector = sqlite.Open(sqliteDSN)
	default:
		dialector = postgres.Open(strings.TrimSpace(dsn))
	}

	conn, errOpen := gorm.Open(dialector, gormCfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open %s: %w", info.Type, errOpen)
	}
	if info.Type == DialectSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY under concurrent handlers.
		if sqlDB, errDB := conn.DB(); errDB == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return conn, nil
}
