package service

import (
	"testing"

	"simbroker/biz/model"
)

func routingTable() *model.PartitionTable {
	pt := model.NewPartitionTable()
	pt.AccountToPartition["u1|CNY"] = "p1"
	pt.AccountToPartition["u2|CNY"] = "p2"
	pt.AccountToPartition["orphan|CNY"] = "gone"
	pt.Partitions["p1"] = &model.Partition{
		ID: "p1", Accounts: []string{"u1|CNY"}, Workers: []string{"10.0.0.1:8080"},
	}
	pt.Partitions["p2"] = &model.Partition{
		ID: "p2", Accounts: []string{"u2|CNY"}, Workers: []string{"10.0.0.2:8080", "10.0.0.3:8080"},
	}
	return pt
}

func TestPartitionForAccount(t *testing.T) {
	pm := &PartitionManager{cache: routingTable()}

	if p := pm.PartitionForAccount("u1|CNY"); p == nil || p.ID != "p1" {
		t.Errorf("u1|CNY -> %+v, want p1", p)
	}
	if p := pm.PartitionForAccount("unknown|CNY"); p != nil {
		t.Errorf("unregistered account -> %+v, want nil", p)
	}
	// 分区被回收但映射残留
	if p := pm.PartitionForAccount("orphan|CNY"); p != nil {
		t.Errorf("orphan mapping -> %+v, want nil", p)
	}
}

func TestOwnsAccount(t *testing.T) {
	pm := &PartitionManager{cache: routingTable()}

	if !pm.OwnsAccount("u1|CNY", "10.0.0.1:8080") {
		t.Error("p1 worker should own u1|CNY")
	}
	if pm.OwnsAccount("u1|CNY", "10.0.0.2:8080") {
		t.Error("p2 worker must not own u1|CNY")
	}
	if !pm.OwnsAccount("u2|CNY", "10.0.0.3:8080") {
		t.Error("every p2 worker owns u2|CNY")
	}
	// 未登记账户由本节点兜底
	if !pm.OwnsAccount("unknown|CNY", "10.0.0.9:8080") {
		t.Error("unregistered account falls back to the local node")
	}
}
