package ioc

import (
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"github.com/gotomicro/ego/core/econf"
)

// InitCrypto 联系方式和供应商凭证的加密上下文，进程内只有一个
func InitCrypto() *crypto.Crypto {
	type Config struct {
		Key  string `yaml:"key"`
		Salt string `yaml:"salt"`
	}
	var cfg Config
	if err := econf.UnmarshalKey("crypto", &cfg); err != nil {
		panic(err)
	}
	c, err := crypto.New(cfg.Key, cfg.Salt)
	if err != nil {
		panic(err)
	}
	return c
}
