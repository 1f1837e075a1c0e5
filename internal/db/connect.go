// Package db opens and migrates the ccd session-history database.
package db

import (
	"fmt"

	godsn "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
)

// Connect opens a GORM connection per the config: MySQL when a host is set,
// a local sqlite file otherwise.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.Host != "" {
		return connectMySQL(cfg)
	}
	return connectSQLite(cfg.Path)
}

func connectMySQL(cfg config.DBConfig) (*gorm.DB, error) {
	dsnCfg := godsn.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true

	db, err := gorm.Open(mysql.Open(dsnCfg.FormatDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s/%s: %w", dsnCfg.Addr, cfg.Database, err)
	}
	return db, nil
}

func connectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	return db, nil
}
