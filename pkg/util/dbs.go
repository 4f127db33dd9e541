package util

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase 按驱动打开数据库，DSN 为空时使用内存 sqlite
func InitDatabase(driver, dsn string, log logger.Interface) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
	}
	if log != nil {
		cfg.Logger = log
	}
	db, err := createDatabaseInstance(cfg, driver, dsn)
	if err != nil {
		return nil, err
	}
	if isMemoryDSN(driver, dsn) {
		// 内存库每个连接是独立的数据库，只保留一个连接
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func createDatabaseInstance(cfg *gorm.Config, driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "pg", "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlserver", "mssql":
		return gorm.Open(sqlserver.Open(dsn), cfg)
	}
	if dsn == "" {
		dsn = "file::memory:"
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

func isMemoryDSN(driver, dsn string) bool {
	switch driver {
	case "mysql", "pg", "postgres", "sqlserver", "mssql":
		return false
	}
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// SQLiteFile 从 sqlite DSN 中取出文件路径，内存库返回空
func SQLiteFile(dsn string) string {
	if isMemoryDSN("sqlite", dsn) {
		return ""
	}
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}
