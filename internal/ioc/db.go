package ioc

import (
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"github.com/ego-component/egorm"
	"github.com/gotomicro/ego/core/econf"
)

func InitDB() *egorm.Component {
	db := egorm.Load("mysql").Build()
	if econf.GetBool("mysql.autoMigrate") {
		if err := dao.InitTables(db); err != nil {
			panic(err)
		}
	}
	return db
}
