package util

import (
	"strings"

	"simbroker/conf"
)

// DefaultAccountKey 本节点默认账户键
func DefaultAccountKey() string {
	cfg := conf.GetConf()
	return cfg.Broker.NodeID + "|" + cfg.Broker.Currency
}

// IsLocalAccount 判断本节点是否负责该账户
func IsLocalAccount(accountKey string) bool {
	cfg := conf.GetConf()
	if accountKey == DefaultAccountKey() {
		return true
	}
	for _, a := range ParseAccounts(cfg.Broker.Accounts) {
		if a == accountKey {
			return true
		}
	}
	return false
}

// ParseAccounts 解析逗号分隔的账户键列表
func ParseAccounts(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
