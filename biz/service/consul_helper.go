package service

import (
	"fmt"

	"github.com/hashicorp/consul/api"

	"simbroker/biz/util"
)

// ConsulHelper 封装 Consul 注册与发现
// 使用前请确保 Consul agent 已启动

type ConsulHelper struct {
	client *api.Client
}

// NewConsulHelper 创建 Consul 客户端
func NewConsulHelper(addr string) (*ConsulHelper, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr
	cli, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ConsulHelper{client: cli}, nil
}

// NewConsulHelperWithAddrs 支持多个 Consul 地址高可用
func NewConsulHelperWithAddrs(addrs []string) (*ConsulHelper, error) {
	var lastErr error
	for _, addr := range addrs {
		cfg := api.DefaultConfig()
		cfg.Address = addr
		cli, err := api.NewClient(cfg)
		if err == nil {
			// 尝试健康检查
			_, errPing := cli.Agent().Self()
			if errPing == nil {
				return &ConsulHelper{client: cli}, nil
			}
			lastErr = errPing
		} else {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("all consul addresses failed: %v", lastErr)
}

// RegisterBroker 注册模拟账户节点到 Consul
// nodeID: 唯一节点ID，accounts: 该节点负责的账户列表
func (c *ConsulHelper) RegisterBroker(nodeID string, accounts []string, port int) error {
	addr := util.GetLocalIP()
	reg := &api.AgentServiceRegistration{
		ID:      nodeID,
		Name:    "sim_broker",
		Address: addr,
		Port:    port,
		Tags:    accounts,
		Check: &api.AgentServiceCheck{
			TCP:      fmt.Sprintf("%s:%d", addr, port),
			Interval: "10s",
			Timeout:  "2s",
		},
	}
	return c.client.Agent().ServiceRegister(reg)
}

// DiscoverBroker 查询负责 accountKey 的节点
func (c *ConsulHelper) DiscoverBroker(accountKey string) ([]*api.AgentService, error) {
	services, err := c.client.Agent().Services()
	if err != nil {
		return nil, err
	}
	var result []*api.AgentService
	for _, svc := range services {
		if svc.Service == "sim_broker" {
			for _, tag := range svc.Tags {
				if tag == accountKey {
					result = append(result, svc)
				}
			}
		}
	}
	return result, nil
}

// Client 返回 consul client
func (c *ConsulHelper) Client() *api.Client {
	return c.client
}
