package sim

import "sort"

// Patch 单条增量：路径 + 新值。调用方按序应用即可还原引擎状态。
type Patch struct {
	Path  []string `json:"path"`
	Value any      `json:"value"`
}

// ApplyPatches 把增量按序合并进调用方持有的快照树
func ApplyPatches(tree map[string]any, patches []Patch) {
	for _, p := range patches {
		node := tree
		for _, key := range p.Path[:len(p.Path)-1] {
			next, ok := node[key].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[key] = next
			}
			node = next
		}
		node[p.Path[len(p.Path)-1]] = p.Value
	}
}

// deepCopyTree 快照树深拷贝，叶子都是标量
func deepCopyTree(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			dst[k] = deepCopyTree(m)
		} else {
			dst[k] = v
		}
	}
	return dst
}

// shadowNode 取影子树中 path 对应的节点，不存在则创建
func shadowNode(tree map[string]any, path ...string) map[string]any {
	node := tree
	for _, key := range path {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[key] = next
		}
		node = next
	}
	return node
}

// diffRecord 对比记录与影子树，只输出变化的字段，并同步影子树。
// 字段按键名排序，保证同一调用序列产生相同的 diff 序列。
func diffRecord(prefix []string, record map[string]any, shadow map[string]any) []Patch {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var patches []Patch
	for _, k := range keys {
		v := record[k]
		if old, ok := shadow[k]; ok && old == v {
			continue
		}
		path := make([]string, 0, len(prefix)+1)
		path = append(path, prefix...)
		path = append(path, k)
		patches = append(patches, Patch{Path: path, Value: v})
		shadow[k] = v
	}
	return patches
}

// collector 聚合一次操作内被改动的对象，按固定顺序产出 diff：
// 持仓 -> 账户 -> 订单/成交，保证调用方合并时不会读到过期的依赖值。
type collector struct {
	positions map[string]bool
	account   bool
	orders    map[string]bool
	trades    []string
}

func newCollector() *collector {
	return &collector{
		positions: make(map[string]bool),
		orders:    make(map[string]bool),
	}
}

func (c *collector) markPosition(instrumentID string) { c.positions[instrumentID] = true }
func (c *collector) markAccount()                     { c.account = true }
func (c *collector) markOrder(orderID string)         { c.orders[orderID] = true }
func (c *collector) markTrade(tradeID string)         { c.trades = append(c.trades, tradeID) }

// flush 生成本次操作的全部增量并同步影子树
func (e *Engine) flush(c *collector) []Patch {
	var patches []Patch

	posKeys := make([]string, 0, len(c.positions))
	for k := range c.positions {
		posKeys = append(posKeys, k)
	}
	sort.Strings(posKeys)
	for _, id := range posKeys {
		p := e.positions[id]
		node := shadowNode(e.shadow, e.accountKey, "positions", id)
		patches = append(patches, diffRecord([]string{e.accountKey, "positions", id}, p.toMap(), node)...)
	}

	if c.account {
		node := shadowNode(e.shadow, e.accountKey, "accounts", e.account.Currency)
		patches = append(patches, diffRecord([]string{e.accountKey, "accounts", e.account.Currency}, e.account.toMap(), node)...)
	}

	orderKeys := make([]string, 0, len(c.orders))
	for k := range c.orders {
		orderKeys = append(orderKeys, k)
	}
	sort.Strings(orderKeys)
	for _, id := range orderKeys {
		o := e.orders[id]
		node := shadowNode(e.shadow, e.accountKey, "orders", id)
		patches = append(patches, diffRecord([]string{e.accountKey, "orders", id}, o.toMap(), node)...)
	}

	for _, id := range c.trades {
		t := e.trades[id]
		node := shadowNode(e.shadow, e.accountKey, "trades", id)
		patches = append(patches, diffRecord([]string{e.accountKey, "trades", id}, t.toMap(), node)...)
	}
	return patches
}
