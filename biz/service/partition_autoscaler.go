package service

import (
	"context"
	"sync"
	"time"

	"simbroker/biz/model"
)

// PartitionMetricsProvider 分区负载采集接口
// 可实现 Prometheus、Consul KV、Redis、本地统计等多种方式

type PartitionMetricsProvider interface {
	GetPartitionQPS(partitionID string) int
	GetAccountQPS(accountKey string) int
}

// WorkerLoadProvider worker负载采集接口，支持多种衡量方式
// 可实现分区数、QPS、CPU等多种方式

type WorkerLoadProvider interface {
	GetAllWorkers() []string
	GetWorkerLoad(worker string) int
}

// PartitionAutoScaler 自动扩缩容调度器
// 定期采集分区负载，自动调整分区表

type PartitionAutoScaler struct {
	pm       *PartitionManager
	metrics  PartitionMetricsProvider
	workers  WorkerLoadProvider
	interval time.Duration
	stopCh   chan struct{}
	lock     sync.Mutex
}

func NewPartitionAutoScaler(pm *PartitionManager, metrics PartitionMetricsProvider, workers WorkerLoadProvider, interval time.Duration) *PartitionAutoScaler {
	return &PartitionAutoScaler{
		pm:       pm,
		metrics:  metrics,
		workers:  workers,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (a *PartitionAutoScaler) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.scaleIfNeeded()
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		}
	}
}

func (a *PartitionAutoScaler) Stop() {
	close(a.stopCh)
}

// selectIdleWorker 选择负载最低的worker
func (a *PartitionAutoScaler) selectIdleWorker() string {
	workers := a.workers.GetAllWorkers()
	if len(workers) == 0 {
		return ""
	}
	minLoad := a.workers.GetWorkerLoad(workers[0])
	minWorker := workers[0]
	for _, w := range workers[1:] {
		load := a.workers.GetWorkerLoad(w)
		if load < minLoad {
			minLoad = load
			minWorker = w
		}
	}
	return minWorker
}

// scaleIfNeeded 采集分区负载并自动扩缩容
func (a *PartitionAutoScaler) scaleIfNeeded() {
	a.lock.Lock()
	defer a.lock.Unlock()
	pt := a.pm.GetPartitionTable()
	if pt == nil || pt.Partitions == nil {
		return
	}
	accountLoad := a.collectLoads(pt)
	newPT := pt.DeepCopy()

	needUpdateHot := a.splitHotAccounts(newPT, accountLoad)
	needUpdateCold := a.mergeColdAccounts(newPT, accountLoad)

	if needUpdateHot || needUpdateCold {
		_ = a.pm.UpdatePartitionTable(newPT)
	}
}

func (a *PartitionAutoScaler) collectLoads(pt *model.PartitionTable) map[string]int {
	accountLoad := make(map[string]int)
	for _, p := range pt.Partitions {
		for _, acct := range p.Accounts {
			accountLoad[acct] = a.metrics.GetAccountQPS(acct)
		}
	}
	return accountLoad
}

// splitHotAccounts 把高负载账户拆到独立分区
func (a *PartitionAutoScaler) splitHotAccounts(newPT *model.PartitionTable, accountLoad map[string]int) bool {
	needUpdate := false
	for pid, p := range newPT.Partitions {
		var hot []string
		for _, acct := range p.Accounts {
			if accountLoad[acct] > 800 {
				hot = append(hot, acct)
			}
		}
		if len(hot) == 0 {
			continue
		}
		removeAccountsFromPartition(p, hot)
		for _, acct := range hot {
			a.createHotPartition(newPT, pid, acct)
		}
		needUpdate = true
	}
	return needUpdate
}

func removeAccountsFromPartition(p *model.Partition, toRemove []string) {
	hotSet := make(map[string]struct{})
	for _, s := range toRemove {
		hotSet[s] = struct{}{}
	}
	var remain []string
	for _, s := range p.Accounts {
		if _, ok := hotSet[s]; !ok {
			remain = append(remain, s)
		}
	}
	p.Accounts = remain
}

func (a *PartitionAutoScaler) createHotPartition(newPT *model.PartitionTable, pid, accountKey string) {
	idleWorker := a.selectIdleWorker()
	newPID := pid + "_hot_" + accountKey + "_" + time.Now().Format("150405")
	newPT.Partitions[newPID] = &model.Partition{
		ID:       newPID,
		Accounts: []string{accountKey},
		Workers:  []string{idleWorker},
	}
	newPT.AccountToPartition[accountKey] = newPID
}

// mergeColdAccounts 把低负载账户合并到同一分区
func (a *PartitionAutoScaler) mergeColdAccounts(newPT *model.PartitionTable, accountLoad map[string]int) bool {
	var cold []string
	for acct, qps := range accountLoad {
		if qps < 5 {
			cold = append(cold, acct)
		}
	}
	if len(cold) <= 1 {
		return false
	}
	idleWorker := a.selectIdleWorker()
	newPID := "cold_merge_" + time.Now().Format("150405")
	newPT.Partitions[newPID] = &model.Partition{
		ID:       newPID,
		Accounts: cold,
		Workers:  []string{idleWorker},
	}
	coldSet := make(map[string]struct{})
	for _, s := range cold {
		coldSet[s] = struct{}{}
		newPT.AccountToPartition[s] = newPID
	}
	for id, p := range newPT.Partitions {
		if id == newPID {
			continue
		}
		var remain []string
		for _, s := range p.Accounts {
			if _, ok := coldSet[s]; !ok {
				remain = append(remain, s)
			}
		}
		p.Accounts = remain
	}
	return true
}

// ConsulWorkerLoadProvider 以每个worker承载的分区数为负载
type ConsulWorkerLoadProvider struct {
	pm *PartitionManager
}

func NewConsulWorkerLoadProvider(pm *PartitionManager) *ConsulWorkerLoadProvider {
	return &ConsulWorkerLoadProvider{pm: pm}
}

func (p *ConsulWorkerLoadProvider) GetAllWorkers() []string {
	pt := p.pm.GetPartitionTable()
	if pt == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var workers []string
	for _, part := range pt.Partitions {
		for _, w := range part.Workers {
			if _, ok := seen[w]; !ok {
				seen[w] = struct{}{}
				workers = append(workers, w)
			}
		}
	}
	return workers
}

func (p *ConsulWorkerLoadProvider) GetWorkerLoad(worker string) int {
	pt := p.pm.GetPartitionTable()
	if pt == nil {
		return 0
	}
	load := 0
	for _, part := range pt.Partitions {
		for _, w := range part.Workers {
			if w == worker {
				load++
			}
		}
	}
	return load
}
