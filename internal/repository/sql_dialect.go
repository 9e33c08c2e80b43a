package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// IsUniqueViolation 判断是否为唯一约束冲突，兼容 sqlite 与 postgres。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return isUniqueViolationMessage(err.Error())
}

func isUniqueViolationMessage(msg string) bool {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "unique constraint failed"):
		// sqlite
		return true
	case strings.Contains(msg, "duplicate key value"), strings.Contains(msg, "sqlstate 23505"):
		// postgres
		return true
	}
	return false
}

// lockingSupported sqlite 不支持 SELECT ... FOR UPDATE，写事务本身已串行。
func lockingSupported(db *gorm.DB) bool {
	switch dbDialectName(db) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}
