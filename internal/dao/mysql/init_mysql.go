// Package mysql 提供数据访问层的初始化
// 负责建立数据库连接、自动迁移表结构、初始化 Repository 层
package mysql

import (
	"fmt"
	"os"
	"path/filepath"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init 初始化数据库连接并返回 Repository 层实例
// 执行步骤：
//  1. 从配置读取连接信息（mysql 或 sqlite）
//  2. 使用 GORM 建立数据库连接
//  3. 执行 AutoMigrate 自动迁移表结构
//  4. 创建并返回 Repository 实例
func Init() *repository.Repositories {
	conf := config.GetConfig()

	var (
		repos *repository.Repositories
		err   error
	)
	switch conf.MysqlConfig.Driver {
	case "sqlite":
		if dir := filepath.Dir(conf.MysqlConfig.SqlitePath); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		repos, err = OpenSQLite(conf.MysqlConfig.SqlitePath, logger.Warn)
	default:
		repos, err = openMySQL(conf.MysqlConfig)
	}
	if err != nil {
		zap.L().Fatal("初始化数据库失败", zap.String("driver", conf.MysqlConfig.Driver), zap.Error(err))
	}
	return repos
}

func openMySQL(c config.MysqlConfig) (*repository.Repositories, error) {
	// 格式：user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.DatabaseName)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}
	return repository.NewRepositories(db), nil
}

// OpenSQLite 打开 sqlite 数据库（纯 Go 驱动），path 为 ":memory:" 时使用内存库
// 单连接保证内存库在多个查询间共享，同时让 sqlite 的写入串行化
func OpenSQLite(path string, level logger.LogLevel) (*repository.Repositories, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}
	return repository.NewRepositories(db), nil
}

// Migrate 自动迁移聊天相关表结构
// 如果表不存在则创建，如果字段变更则更新结构，不会删除已有字段或数据
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Message{},       // 消息表
		&model.ReadStatus{},    // 群消息已读表
		&model.ClearedChat{},   // 清空聊天边界表
		&model.HiddenMessage{}, // 仅对我删除表
	)
}
