package ioc

import (
	"github.com/ego-component/eetcd"
	"github.com/gotomicro/ego/core/econf"
)

// InitEtcdClient e2e 测试使用的 etcd，见 scripts/test_docker_compose.yml
func InitEtcdClient() *eetcd.Component {
	econf.Set("etcd.e2e", map[string]any{
		"addrs":          []string{"127.0.0.1:2379"},
		"secure":         false,
		"connectTimeout": "1s",
	})
	return eetcd.Load("etcd.e2e").Build()
}
