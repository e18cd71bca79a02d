package dao

import (
	"errors"

	"github.com/ego-component/egorm"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// InitTables 建表，生产环境一般由 DBA 执行 DDL，测试和单机部署直接用这个
func InitTables(db *egorm.Component) error {
	return db.AutoMigrate(
		&Organization{},
		&Recipient{},
		&Device{},
		&Audience{},
		&AudienceFilter{},
		&Preference{},
		&Subscription{},
		&ProviderConfig{},
		&Broadcast{},
		&ScheduledJob{},
		&Notification{},
		&Delivery{},
	)
}

// isUniqueConstraintError 检查是否是唯一索引冲突错误
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	me := new(mysql.MySQLError)
	if ok := errors.As(err, &me); ok {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	return false
}
