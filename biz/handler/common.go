package handler

import (
	"fmt"

	"simbroker/biz/service"
	"simbroker/conf"
)

// Broker 由 main 注入的账户服务实例
var Broker *service.BrokerService

func InitBroker(b *service.BrokerService) {
	Broker = b
}

// defaultAccountKey 未指定账户时的缺省账户
func defaultAccountKey() string {
	brokerConf := conf.GetConf().Broker
	return fmt.Sprintf("%s|%s", brokerConf.NodeID, brokerConf.Currency)
}

func accountKeyOrDefault(key string) string {
	if key == "" {
		return defaultAccountKey()
	}
	return key
}
