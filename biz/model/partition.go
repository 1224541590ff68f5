package model

// Partition 表示一个分区
// ID: 分区唯一标识
// Accounts: 当前分区负责的账户列表
// Workers: 该分区的 worker 节点地址列表

type Partition struct {
	ID       string   `json:"id"`
	Accounts []string `json:"accounts"`
	Workers  []string `json:"workers"`
}

// PartitionTable 维护账户到分区的映射
// Key: account_key, Value: 分区ID

type PartitionTable struct {
	AccountToPartition map[string]string     `json:"account_to_partition"`
	Partitions         map[string]*Partition `json:"partitions"`
}

// NewPartitionTable 创建空分区表
func NewPartitionTable() *PartitionTable {
	return &PartitionTable{
		AccountToPartition: make(map[string]string),
		Partitions:         make(map[string]*Partition),
	}
}

// DeepCopy 分区表深拷贝，扩缩容调度在副本上修改
func (pt *PartitionTable) DeepCopy() *PartitionTable {
	out := NewPartitionTable()
	for k, v := range pt.AccountToPartition {
		out.AccountToPartition[k] = v
	}
	for id, p := range pt.Partitions {
		cp := &Partition{ID: p.ID}
		cp.Accounts = append(cp.Accounts, p.Accounts...)
		cp.Workers = append(cp.Workers, p.Workers...)
		out.Partitions[id] = cp
	}
	return out
}
