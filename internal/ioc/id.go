package ioc

import (
	id "gitee.com/flycash/broadcast-platform/internal/pkg/id_generator"
	"github.com/gotomicro/ego/core/econf"
)

// InitIDGenerator 多个节点需要配置不同的 machineId
func InitIDGenerator() id.Generator {
	gen, err := id.NewGenerator(uint16(econf.GetInt("idGenerator.machineId")))
	if err != nil {
		panic(err)
	}
	return gen
}
