package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/segmentio/kafka-go"

	kafkaDal "simbroker/biz/dal/kafka"
	"simbroker/biz/dal/pg"
	"simbroker/biz/dal/redis"
	"simbroker/biz/engine"
	"simbroker/biz/model"
	"simbroker/biz/sim"
	"simbroker/conf"
	"simbroker/util"
)

// BrokerService 模拟账户服务。每个账户一个串行 worker，账户内所有
// 行情/下单/撤单/结算命令按到达顺序执行，不同账户互不阻塞。
type BrokerService struct {
	queues      map[string]chan brokerCmd
	mu          sync.RWMutex
	broadcaster engine.Broadcaster
	unicaster   engine.Unicaster
}

var (
	consulHelper *ConsulHelper
	// Metrics 账户级操作计数，供分区扩缩容调度采样
	Metrics = NewLocalPartitionMetrics()
)

type cmdKind int

const (
	cmdQuote cmdKind = iota
	cmdInsertOrder
	cmdCancelOrder
	cmdSettle
	cmdSnapshot
	cmdInitSnapshot
	cmdSettleLog
)

type brokerCmd struct {
	kind   cmdKind
	quote  sim.Quote
	insert sim.InsertOrderReq
	cancel model.CancelOrderMsg
	reply  chan brokerReply
}

type brokerReply struct {
	res   sim.Result
	entry sim.SettlementEntry
	tree  map[string]any
	log   []sim.SettlementEntry
	err   error
}

func NewBrokerService(broadcaster engine.Broadcaster, unicaster engine.Unicaster) *BrokerService {
	if engine.BroadcastPool == nil {
		if err := engine.InitBroadcastPool(1024); err != nil {
			panic(err)
		}
	}
	return &BrokerService{
		queues:      make(map[string]chan brokerCmd),
		broadcaster: broadcaster,
		unicaster:   unicaster,
	}
}

// InitBrokerWithHelper 支持传入 ConsulHelper 实例，便于多地址高可用
func InitBrokerWithHelper(helper *ConsulHelper, nodeID string, accounts []string, port int) error {
	consulHelper = helper
	if err := consulHelper.RegisterBroker(nodeID, accounts, port); err != nil {
		return err
	}
	hlog.Infof("Broker节点已注册到Consul, nodeID=%s, accounts=%v, port=%d", nodeID, accounts, port)
	return nil
}

// queue 取账户的命令队列，不存在则建队列并启动 worker
func (b *BrokerService) queue(accountKey string) chan brokerCmd {
	b.mu.RLock()
	q, ok := b.queues[accountKey]
	b.mu.RUnlock()
	if ok {
		return q
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok = b.queues[accountKey]
	if ok {
		return q
	}
	q = make(chan brokerCmd, 10000)
	b.queues[accountKey] = q
	go b.accountWorker(accountKey, q)
	return q
}

func (b *BrokerService) call(accountKey string, cmd brokerCmd) brokerReply {
	Metrics.Inc(accountKey)
	cmd.reply = make(chan brokerReply, 1)
	b.queue(accountKey) <- cmd
	return <-cmd.reply
}

// UpdateQuote 接收行情，驱动账户的时钟与挂单重估
func (b *BrokerService) UpdateQuote(accountKey string, q sim.Quote) (sim.Result, error) {
	r := b.call(accountKey, brokerCmd{kind: cmdQuote, quote: q})
	return r.res, r.err
}

// InsertOrder 下单。order_id 为空时由服务端生成。
func (b *BrokerService) InsertOrder(msg model.InsertOrderMsg) (string, sim.Result, error) {
	if msg.OrderID == "" {
		id, err := util.GenerateOrderID()
		if err != nil {
			hlog.Errorf("生成订单ID失败: %v", err)
			return "", sim.Result{}, err
		}
		msg.OrderID = fmt.Sprintf("%d", id)
	}
	req := sim.InsertOrderReq{
		InstrumentID: msg.InstrumentID,
		OrderID:      msg.OrderID,
		Direction:    sim.Direction(msg.Direction),
		PriceType:    sim.PriceType(msg.PriceType),
		LimitPrice:   msg.LimitPrice,
		Volume:       msg.Volume,
	}
	r := b.call(msg.AccountKey, brokerCmd{kind: cmdInsertOrder, insert: req})
	return msg.OrderID, r.res, r.err
}

// CancelOrder 撤单，订单不存在或已终态时为无操作
func (b *BrokerService) CancelOrder(msg model.CancelOrderMsg) (sim.Result, error) {
	r := b.call(msg.AccountKey, brokerCmd{kind: cmdCancelOrder, cancel: msg})
	return r.res, r.err
}

// Settle 日终结算
func (b *BrokerService) Settle(accountKey string) (sim.Result, sim.SettlementEntry, error) {
	r := b.call(accountKey, brokerCmd{kind: cmdSettle})
	return r.res, r.entry, r.err
}

// Snapshot 当前完整状态树
func (b *BrokerService) Snapshot(accountKey string) (map[string]any, error) {
	r := b.call(accountKey, brokerCmd{kind: cmdSnapshot})
	return r.tree, r.err
}

// InitSnapshot 初始状态树，调用方以此为合并增量的底座
func (b *BrokerService) InitSnapshot(accountKey string) (map[string]any, error) {
	r := b.call(accountKey, brokerCmd{kind: cmdInitSnapshot})
	return r.tree, r.err
}

// SettleLog 历史结算流水
func (b *BrokerService) SettleLog(accountKey string) ([]sim.SettlementEntry, error) {
	r := b.call(accountKey, brokerCmd{kind: cmdSettleLog})
	return r.log, r.err
}

func newAccountEngine(accountKey string) *sim.Engine {
	brokerConf := conf.GetConf().Broker
	fees := sim.FeePolicy{
		CommissionRate: brokerConf.CommissionRate,
		MinCommission:  brokerConf.MinCommission,
		StampDutyRate:  brokerConf.StampDutyRate,
	}
	return sim.NewEngine(accountKey, brokerConf.Currency, brokerConf.InitBalance, fees)
}

func (b *BrokerService) accountWorker(accountKey string, queue chan brokerCmd) {
	defer func() {
		if r := recover(); r != nil {
			hlog.Errorf("账户worker panic, account=%s, err=%v, stack=%s", accountKey, r, debug.Stack())
		}
		hlog.Infof("账户worker退出, account=%s", accountKey)
	}()
	eng := newAccountEngine(accountKey)
	hlog.Infof("账户worker启动, account=%s", accountKey)
	for cmd := range queue {
		var reply brokerReply
		switch cmd.kind {
		case cmdQuote:
			reply.res, reply.err = eng.UpdateQuote(cmd.quote)
		case cmdInsertOrder:
			reply.res, reply.err = eng.InsertOrder(cmd.insert)
		case cmdCancelOrder:
			reply.res = eng.CancelOrder(cmd.cancel.InstrumentID, cmd.cancel.OrderID)
		case cmdSettle:
			reply.res, reply.entry = eng.Settle()
			b.persistSettlement(accountKey, eng, reply.entry)
		case cmdSnapshot:
			reply.tree = eng.Snapshot()
		case cmdInitSnapshot:
			reply.tree = eng.InitSnapshot()
		case cmdSettleLog:
			reply.log = eng.SettleLog()
		}
		if reply.err == nil && (len(reply.res.Patches) > 0 || len(reply.res.Events) > 0) {
			b.publishResult(accountKey, eng, cmd, reply.res)
		}
		cmd.reply <- reply
	}
}

// publishResult 广播增量、落库订单与成交、刷新缓存
func (b *BrokerService) publishResult(accountKey string, eng *sim.Engine, cmd brokerCmd, res sim.Result) {
	msgBytes, err := json.Marshal(map[string]any{
		"type":        "diff",
		"account_key": accountKey,
		"patches":     res.Patches,
		"events":      res.Events,
		"server_time": time.Now().UnixMilli(),
	})
	if err == nil {
		msg := make([]byte, len(msgBytes))
		copy(msg, msgBytes)
		_ = engine.BroadcastPool.Submit(func() {
			b.broadcaster(accountKey, msg)
		})
		_ = redis.PublishPatches(context.Background(), accountKey, msgBytes)
	}

	for _, ev := range res.Events {
		saveOrderEventToKafka(accountKey, cmd, ev)
	}
	for _, trade := range tradesFromPatches(accountKey, res.Patches) {
		saveTradeToKafka(trade)
		saveTradeToDB(trade)
		cacheTrade(trade.InstrumentID, trade, 100)
		hlog.Infof("成交回报, trade_id=%s, instrument=%s, price=%f, volume=%d",
			trade.TradeID, trade.InstrumentID, trade.Price, trade.Volume)
	}

	if err := redis.SaveSnapshot(context.Background(), accountKey, eng.Snapshot()); err != nil {
		hlog.Warnf("快照缓存失败, account=%s, err=%v", accountKey, err)
	}
}

func (b *BrokerService) persistSettlement(accountKey string, eng *sim.Engine, entry sim.SettlementEntry) {
	journalSettlement(accountKey, entry)
	tree := eng.Snapshot()
	s := &model.Settlement{
		AccountKey:      accountKey,
		Date:            entry.Date,
		TradeCount:      len(entry.Trades),
		CancelledOrders: entry.CancelledOrders,
		RealProfit:      entry.RealProfit,
		Dividend:        entry.Dividend,
	}
	bs := &model.BalanceSnapshot{
		AccountKey: accountKey,
		Date:       entry.Date,
		Currency:   conf.GetConf().Broker.Currency,
	}
	if node, ok := tree[accountKey].(map[string]any); ok {
		if accts, ok := node["accounts"].(map[string]any); ok {
			if acct, ok := accts[bs.Currency].(map[string]any); ok {
				bs.AssetHis, _ = acct["asset_his"].(float64)
				bs.Available, _ = acct["available"].(float64)
				bs.MarketValue, _ = acct["market_value"].(float64)
				bs.Asset, _ = acct["asset"].(float64)
			}
		}
	}
	if pg.GormDB == nil {
		return
	}
	if err := pg.InsertSettlement(s, bs); err != nil {
		hlog.Errorf("结算流水落库失败, account=%s, date=%s, err=%v", accountKey, entry.Date, err)
	}
}

// tradesFromPatches 从增量中提取本次新产生的成交记录
func tradesFromPatches(accountKey string, patches []sim.Patch) []model.Trade {
	fields := make(map[string]map[string]any)
	var order []string
	for _, p := range patches {
		if len(p.Path) != 4 || p.Path[0] != accountKey || p.Path[1] != "trades" {
			continue
		}
		id := p.Path[2]
		m, ok := fields[id]
		if !ok {
			m = make(map[string]any)
			fields[id] = m
			order = append(order, id)
		}
		m[p.Path[3]] = p.Value
	}
	trades := make([]model.Trade, 0, len(order))
	for _, id := range order {
		m := fields[id]
		t := model.Trade{TradeID: id, AccountKey: accountKey}
		t.OrderID, _ = m["order_id"].(string)
		t.InstrumentID, _ = m["instrument_id"].(string)
		t.Direction, _ = m["direction"].(string)
		t.Price, _ = m["price"].(float64)
		t.Volume, _ = m["volume"].(int64)
		t.Fee, _ = m["fee"].(float64)
		t.TradeDateTime, _ = m["trade_date_time"].(int64)
		trades = append(trades, t)
	}
	return trades
}

// ──────────────────────────────
// Kafka 订单事件写入：批量聚合，由独立消费者批量入库
// ──────────────────────────────

var orderBatchChan chan model.Order
var orderKafkaTopic string

func InitOrderKafkaWriter(topic string) {
	orderKafkaTopic = topic
	orderBatchChan = make(chan model.Order, 10000)
	go batchOrderKafkaWriter()
}

// 优雅关闭Kafka批量写入协程
var orderKafkaWriterClose = make(chan struct{})

func ShutdownOrderKafkaWriter() {
	close(orderKafkaWriterClose)
}

func saveOrderEventToKafka(accountKey string, cmd brokerCmd, ev sim.OrderEvent) {
	if orderBatchChan == nil {
		return
	}
	row := model.Order{
		OrderID:      ev.OrderID,
		AccountKey:   accountKey,
		InstrumentID: ev.InstrumentID,
		Status:       string(ev.Status),
		LastMsg:      ev.LastMsg,
		UpdatedAt:    time.Now().UnixMilli(),
	}
	if cmd.kind == cmdInsertOrder && cmd.insert.OrderID == ev.OrderID {
		row.Direction = string(cmd.insert.Direction)
		row.PriceType = string(cmd.insert.PriceType)
		row.LimitPrice = cmd.insert.LimitPrice
		row.VolumeOrign = cmd.insert.Volume
		row.InsertDateTime = time.Now().UnixNano()
	}
	orderBatchChan <- row
}

func batchOrderKafkaWriter() {
	batch := make([]kafka.Message, 0, 100)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case order := <-orderBatchChan:
			msgBytes, err := json.Marshal(order)
			if err == nil {
				// 以账户为 Key，同一账户的订单事件保序
				batch = append(batch, kafka.Message{Key: []byte(order.AccountKey), Value: msgBytes})
			}
			if len(batch) >= 100 {
				flushOrderKafkaBatch(&batch)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flushOrderKafkaBatch(&batch)
			}
		case <-orderKafkaWriterClose:
			// 收到关闭信号，写完剩余数据再退出
			if len(batch) > 0 {
				flushOrderKafkaBatch(&batch)
			}
			return
		}
	}
}

func flushOrderKafkaBatch(batch *[]kafka.Message) {
	if len(*batch) == 0 {
		return
	}
	writer := kafkaDal.WriterFor(orderKafkaTopic)
	if writer == nil {
		hlog.Errorf("[OrderKafkaBatch] Kafka writer未初始化，topic=%v，无法写入Kafka", orderKafkaTopic)
		return
	}
	err := writer.WriteMessages(context.Background(), (*batch)...)
	if err != nil {
		hlog.Errorf("[OrderKafkaBatch] 写入Kafka失败，topic=%v，err=%v", orderKafkaTopic, err)
	}
	*batch = (*batch)[:0]
}

// ──────────────────────────────
// Kafka 订单消费批量入库
// ──────────────────────────────

var orderKafkaConsumerClose chan struct{}

func StartOrderKafkaConsumer(topic string) {
	orderKafkaConsumerClose = make(chan struct{})
	brokers := conf.GetConf().Kafka.Brokers
	consumerNum := runtime.NumCPU()
	for i := 0; i < consumerNum; i++ {
		go orderKafkaConsumerWorker(i, brokers, topic)
	}
}

func orderKafkaConsumerWorker(idx int, brokers []string, topic string) {
	r := initOrderKafkaReader(brokers, topic)
	batch := make([]model.Order, 0, 50000)
	var batchWait = 1 * time.Second
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	hlog.Infof("[OrderKafkaConsumer-%d] Kafka Reader初始化: topic=%s, groupID=%s, brokers=%v",
		idx, topic, "order-db-writer", brokers)
	for {
		select {
		case <-orderKafkaConsumerClose:
			if len(batch) > 0 {
				batchInsertOrders(batch)
				batch = batch[:0]
			}
			return
		case <-ticker.C:
			batchWait = adjustBatchWait(r)
			msgBatch := consumeOrderMessages(r, batchWait)
			if len(msgBatch) > 0 {
				batchInsertOrders(msgBatch)
			}
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			m, err := r.ReadMessage(ctx)
			if err == nil {
				var order model.Order
				if err := json.Unmarshal(m.Value, &order); err == nil {
					batch = append(batch, order)
				}
				if len(batch) >= 50000 {
					batchInsertOrders(batch)
					batch = batch[:0]
				}
			}
			cancel()
		}
	}
}

func initOrderKafkaReader(brokers []string, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "order-db-writer",
		MinBytes: 1000,
		MaxBytes: 20e6,
	})
}

func adjustBatchWait(r *kafka.Reader) time.Duration {
	stats := r.Stats()
	lag := stats.Lag
	if lag > 20000 {
		return 100 * time.Millisecond
	} else if lag > 5000 {
		return 500 * time.Millisecond
	}
	return 1 * time.Second
}

func consumeOrderMessages(r *kafka.Reader, batchWait time.Duration) []model.Order {
	ctx, cancel := context.WithTimeout(context.Background(), batchWait)
	defer cancel()
	msgBatch := make([]model.Order, 0, 50000)
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			break
		}
		var order model.Order
		if err := json.Unmarshal(m.Value, &order); err == nil {
			msgBatch = append(msgBatch, order)
		}
		if len(msgBatch) >= 50000 {
			break
		}
	}
	return msgBatch
}

func batchInsertOrders(orders []model.Order) {
	if pg.GetPool() == nil || len(orders) == 0 {
		return
	}
	// 构造原生多值INSERT语句，冲突时推进状态字段
	query := "INSERT INTO orders (order_id, account_key, instrument_id, direction, price_type, limit_price, volume_orign, volume_left, status, last_msg, insert_date_time, updated_at) VALUES "
	args := make([]interface{}, 0, len(orders)*12)
	valueStrings := make([]string, 0, len(orders))
	for i, order := range orders {
		base := i * 12
		placeholders := make([]string, 12)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		args = append(args,
			order.OrderID,
			order.AccountKey,
			order.InstrumentID,
			order.Direction,
			order.PriceType,
			order.LimitPrice,
			order.VolumeOrign,
			order.VolumeLeft,
			order.Status,
			order.LastMsg,
			order.InsertDateTime,
			order.UpdatedAt,
		)
	}
	query += strings.Join(valueStrings, ",")
	query += " ON CONFLICT (order_id) DO UPDATE SET volume_left=EXCLUDED.volume_left, status=EXCLUDED.status, last_msg=EXCLUDED.last_msg, updated_at=EXCLUDED.updated_at"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := pg.GetPool().Exec(ctx, query, args...)
	if err != nil {
		hlog.Errorf("[OrderBatch] 批量插入订单到Postgres失败: %v", err)
	}
}

// ──────────────────────────────
// Kafka 成交写入：批量聚合
// ──────────────────────────────

var (
	kafkaWriter    *kafka.Writer
	tradeBatchChan chan model.Trade
)

func InitKafkaWriter(brokers []string, topic string) {
	kafkaWriter = &kafka.Writer{
		Addr:  kafka.TCP(brokers...),
		Topic: topic,
		Async: true,
	}
	tradeBatchChan = make(chan model.Trade, 10000)
	go batchKafkaWriter()
}

func batchKafkaWriter() {
	batch := make([]kafka.Message, 0, 100)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case trade := <-tradeBatchChan:
			msgBytes, err := json.Marshal(trade)
			if err == nil {
				batch = append(batch, kafka.Message{Value: msgBytes})
			}
			if len(batch) >= 100 {
				flushKafkaBatch(&batch)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flushKafkaBatch(&batch)
			}
		}
	}
}

func flushKafkaBatch(batch *[]kafka.Message) {
	if kafkaWriter == nil || len(*batch) == 0 {
		return
	}
	err := kafkaWriter.WriteMessages(context.Background(), (*batch)...)
	if err != nil {
		hlog.Errorf("批量写入Kafka失败: %v", err)
	}
	*batch = (*batch)[:0]
}

func saveTradeToKafka(trade model.Trade) {
	if tradeBatchChan != nil {
		tradeBatchChan <- trade
	}
}

func saveTradeToDB(trade model.Trade) {
	if pg.GormDB == nil {
		hlog.Warnf("Postgres未初始化，无法持久化成交, trade_id=%s", trade.TradeID)
		return
	}
	if err := pg.InsertTrade(&trade); err != nil {
		hlog.Errorf("持久化成交到Postgres失败, trade_id=%s, err=%v", trade.TradeID, err)
		saveTradeCompensate(trade)
	}
	// K线聚合写入
	UpdateKlines(trade.InstrumentID, trade.Price, trade.Volume, trade.TradeDateTime/1e9)
}

// 缓存成交记录到 Redis List
func cacheTrade(instrumentID string, trade model.Trade, maxLen int64) {
	ctx := context.Background()
	key := "trades:" + instrumentID
	val, err := json.Marshal(trade)
	if err == nil {
		redis.Client.LPush(ctx, key, val)
		redis.Client.LTrim(ctx, key, 0, maxLen-1)
	}
}

// ForwardToBroker 转发请求到负责该账户的节点（HTTP）
func ForwardToBroker(accountKey, path string, data []byte) error {
	if consulHelper == nil {
		return fmt.Errorf("consul not initialized")
	}
	nodes, err := consulHelper.DiscoverBroker(accountKey)
	if err != nil || len(nodes) == 0 {
		return fmt.Errorf("no broker found for account %s", accountKey)
	}
	// 随机选择一个节点实现负载均衡
	idx := rand.Intn(len(nodes))
	url := fmt.Sprintf("http://%s:%d%s", nodes[idx].Address, nodes[idx].Port, path)
	status, err := postJSON(url, data)
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("remote broker error: status %d", status)
	}
	return nil
}

// postJSON 简单HTTP POST封装,读完并关闭响应体后返回状态码
func postJSON(url string, data []byte) (int, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
