package gateway

import (
	"testing"

	"simbroker/biz/model"
)

func TestLookupWorkerByAccountEmptyCache(t *testing.T) {
	ptc := NewPartitionTableCache()
	if _, ok := ptc.LookupWorkerByAccount("u1|CNY"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestLookupWorkerByAccount(t *testing.T) {
	ptc := NewPartitionTableCache()
	ptc.cache = &model.PartitionTable{
		AccountToPartition: map[string]string{"u1|CNY": "p1"},
		Partitions: map[string]*model.Partition{
			"p1": {ID: "p1", Accounts: []string{"u1|CNY"}, Workers: []string{"10.0.0.1:9000"}},
		},
	}
	addr, ok := ptc.LookupWorkerByAccount("u1|CNY")
	if !ok || addr != "10.0.0.1:9000" {
		t.Fatalf("got (%q, %v), want (10.0.0.1:9000, true)", addr, ok)
	}
	if _, ok := ptc.LookupWorkerByAccount("u2|CNY"); ok {
		t.Fatal("expected miss for unknown account")
	}
}

func TestLookupWorkerByAccountNoWorkers(t *testing.T) {
	ptc := NewPartitionTableCache()
	ptc.cache = &model.PartitionTable{
		AccountToPartition: map[string]string{"u1|CNY": "p1"},
		Partitions:         map[string]*model.Partition{"p1": {ID: "p1"}},
	}
	if _, ok := ptc.LookupWorkerByAccount("u1|CNY"); ok {
		t.Fatal("expected miss when partition has no workers")
	}
}
