package service

import (
	"testing"
	"time"

	"simbroker/biz/model"
)

type fakeMetrics struct {
	qps map[string]int
}

func (f *fakeMetrics) GetAccountQPS(accountKey string) int    { return f.qps[accountKey] }
func (f *fakeMetrics) GetPartitionQPS(partitionID string) int { return 0 }

type fakeWorkers struct {
	load map[string]int
}

func (f *fakeWorkers) GetAllWorkers() []string {
	out := make([]string, 0, len(f.load))
	for w := range f.load {
		out = append(out, w)
	}
	return out
}
func (f *fakeWorkers) GetWorkerLoad(worker string) int { return f.load[worker] }

func tableWith(accounts ...string) *model.PartitionTable {
	pt := model.NewPartitionTable()
	p := &model.Partition{ID: "p1", Accounts: accounts, Workers: []string{"w1"}}
	pt.Partitions["p1"] = p
	for _, a := range accounts {
		pt.AccountToPartition[a] = "p1"
	}
	return pt
}

func TestSplitHotAccounts(t *testing.T) {
	a := &PartitionAutoScaler{
		metrics: &fakeMetrics{qps: map[string]int{"hot": 1000, "cool": 100}},
		workers: &fakeWorkers{load: map[string]int{"w1": 2, "w2": 0}},
	}
	pt := tableWith("hot", "cool")
	load := map[string]int{"hot": 1000, "cool": 100}

	if !a.splitHotAccounts(pt, load) {
		t.Fatal("hot account should trigger a split")
	}
	hotPID := pt.AccountToPartition["hot"]
	if hotPID == "p1" {
		t.Error("hot account should move to a new partition")
	}
	hotPart := pt.Partitions[hotPID]
	if len(hotPart.Accounts) != 1 || hotPart.Accounts[0] != "hot" {
		t.Errorf("hot partition = %+v", hotPart)
	}
	for _, acct := range pt.Partitions["p1"].Accounts {
		if acct == "hot" {
			t.Error("hot account still in the old partition")
		}
	}
}

func TestMergeColdAccounts(t *testing.T) {
	a := &PartitionAutoScaler{
		metrics: &fakeMetrics{},
		workers: &fakeWorkers{load: map[string]int{"w1": 1}},
	}
	pt := tableWith("c1", "c2", "busy")
	load := map[string]int{"c1": 1, "c2": 0, "busy": 300}

	if !a.mergeColdAccounts(pt, load) {
		t.Fatal("two cold accounts should trigger a merge")
	}
	p1, p2 := pt.AccountToPartition["c1"], pt.AccountToPartition["c2"]
	if p1 != p2 {
		t.Errorf("cold accounts in different partitions: %s vs %s", p1, p2)
	}
	if pt.AccountToPartition["busy"] != "p1" {
		t.Error("busy account must stay put")
	}
}

func TestMergeColdSingleAccountNoop(t *testing.T) {
	a := &PartitionAutoScaler{metrics: &fakeMetrics{}, workers: &fakeWorkers{}}
	pt := tableWith("c1", "busy")
	if a.mergeColdAccounts(pt, map[string]int{"c1": 1, "busy": 300}) {
		t.Error("single cold account should not trigger a merge")
	}
}

func TestLocalPartitionMetricsCounts(t *testing.T) {
	m := NewLocalPartitionMetrics()
	for i := 0; i < 7; i++ {
		m.Inc("acct")
	}
	if got := m.GetAccountQPS("acct"); got != 7 {
		t.Errorf("first read = %d, want raw count 7", got)
	}
	time.Sleep(10 * time.Millisecond)
	if got := m.GetAccountQPS("acct"); got != 0 {
		t.Errorf("second read = %d, want 0 after reset", got)
	}
}
