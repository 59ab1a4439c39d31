// Package database 提供 MySQL 与 Redis 连接的构造函数。
// 连接句柄由调用方持有并显式注入到各层，不再使用包级全局变量。
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// OpenMySQL 建立 MySQL 连接并配置连接池。
// 连接池本身就是系统的隐式背压：池耗尽时上传/查询请求会阻塞在取连接上。
// 启动期失败属于致命错误，由调用方决定是否退出进程。
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接可复用的最大时间

	return db, nil
}
