package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/websocket"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"

	"simbroker/biz/handler"
	"simbroker/biz/model"
	"simbroker/biz/service"
	"simbroker/biz/sim"
	"simbroker/biz/util"
	"simbroker/conf"
	"simbroker/middleware"
)

const shardNum = 32

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(ctx *app.RequestContext) bool {
		return true // 允许所有跨域 WebSocket 连接
	},
}

// AccountShard 按账户分片的订阅表
type AccountShard struct {
	Mu     sync.RWMutex
	Subs   map[string]map[*websocket.Conn]struct{}
	MsgBuf map[string]chan []byte // 每个账户的消息缓冲区
}

var accountShards [shardNum]*AccountShard

var broadcastPool *ants.Pool

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var msgBytePool = sync.Pool{
	New: func() any {
		return make([]byte, 4096)
	},
}

func init() {
	for i := 0; i < shardNum; i++ {
		accountShards[i] = &AccountShard{
			Subs:   make(map[string]map[*websocket.Conn]struct{}),
			MsgBuf: make(map[string]chan []byte),
		}
	}
	// 初始化 goroutine 池，最大协程数可根据实际并发调整
	pool, err := ants.NewPool(1024)
	if err != nil {
		panic(err)
	}
	broadcastPool = pool
}

// 启动账户消息分发 goroutine
func ensureAccountDispatcher(shard *AccountShard, accountKey string) {
	if _, ok := shard.MsgBuf[accountKey]; ok {
		return
	}
	msgBuf := make(chan []byte, 4096)
	shard.MsgBuf[accountKey] = msgBuf
	go func() {
		for msg := range msgBuf {
			shard.Mu.RLock()
			conns := shard.Subs[accountKey]
			for conn := range conns {
				err := broadcastPool.Submit(func() {
					success := false
					for i := 0; i < 3; i++ {
						if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
							log.Printf("broadcast error: %v, retry %d", err, i+1)
						} else {
							success = true
							break
						}
					}
					if !success {
						log.Printf("conn write failed after retries, will remove from account: %v", conn.RemoteAddr())
						shard := GetAccountShard(accountKey)
						shard.Mu.Lock()
						delete(shard.Subs[accountKey], conn)
						if len(shard.Subs[accountKey]) == 0 {
							delete(shard.Subs, accountKey)
						}
						shard.Mu.Unlock()
						cleanConnFromAllAccounts(conn)
						_ = conn.Close()
					}
				})
				if err != nil {
					log.Printf("broadcastPool.Submit error: %v, conn: %v", err, conn.RemoteAddr())
				}
			}
			shard.Mu.RUnlock()
		}
		shard.Mu.Lock()
		delete(shard.MsgBuf, accountKey)
		shard.Mu.Unlock()
	}()
}

func GetAccountShard(accountKey string) *AccountShard {
	h := fnv32(accountKey)
	return accountShards[h%shardNum]
}

func fnv32(key string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return h
}

// wsMessage 解析 action/account_key
type wsMessage struct {
	Action     string `json:"action"`
	AccountKey string `json:"account_key"`
}

func parseAction(msg []byte) (string, string) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return "", ""
	}
	return m.Action, m.AccountKey
}

// 清理连接的所有账户订阅
func cleanConnFromAllAccounts(c *websocket.Conn) {
	for i := 0; i < shardNum; i++ {
		shard := accountShards[i]
		shard.Mu.Lock()
		for acct, conns := range shard.Subs {
			if conns != nil {
				if _, ok := conns[c]; ok {
					delete(conns, c)
					if len(conns) == 0 {
						delete(shard.Subs, acct)
					}
				}
			}
		}
		shard.Mu.Unlock()
	}
}

// Broadcast 广播截面差分消息到账户的所有订阅连接
func Broadcast(accountKey string, msg []byte) {
	shard := GetAccountShard(accountKey)
	shard.Mu.Lock()
	ensureAccountDispatcher(shard, accountKey)
	buf, ok := shard.MsgBuf[accountKey]
	shard.Mu.Unlock()
	if ok && buf != nil {
		select {
		case buf <- msg:
			// 写入成功
		default:
			log.Printf("account %s ring buffer full, drop message", accountKey)
			go saveDroppedMessage(accountKey, msg)
		}
	}
}

func safeBroadcast(accountKey string, buf *bytes.Buffer) {
	msg := msgBytePool.Get().([]byte)
	if cap(msg) < buf.Len() {
		msg = make([]byte, buf.Len())
	}
	msg = msg[:buf.Len()]
	copy(msg, buf.Bytes())
	Broadcast(accountKey, msg)
	msgBytePool.Put(msg)
}

// 丢弃的消息异步写入 Kafka
func saveDroppedMessage(accountKey string, msg []byte) {
	go func() {
		topic := "dropped_account_diff"
		w := getDroppedKafkaWriter(topic)
		if w == nil {
			log.Printf("failed to get dropped kafka writer for topic %s", topic)
			return
		}
		_ = w.WriteMessages(context.Background(), kafka.Message{
			Key:   []byte(accountKey),
			Value: msg,
		})
	}()
}

var droppedKafkaWriters sync.Map // map[topic]*kafka.Writer

func getDroppedKafkaWriter(topic string) *kafka.Writer {
	if w, ok := droppedKafkaWriters.Load(topic); ok {
		return w.(*kafka.Writer)
	}

	brokers := conf.GetConf().Kafka.Brokers
	w := &kafka.Writer{
		Addr:  kafka.TCP(brokers...),
		Topic: topic,
		Async: true,
	}
	droppedKafkaWriters.Store(topic, w)
	return w
}

// PushTradeNotice 成交推送
func PushTradeNotice(accountKey, tradeID, instrumentID string, price float64, volume int64, ts int64) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	buf.WriteString(`{"account_key":"`)
	buf.WriteString(accountKey)
	buf.WriteString(`","type":"trade","data":{`)
	buf.WriteString(`"trade_id":"`)
	buf.WriteString(tradeID)
	buf.WriteString(`","instrument_id":"`)
	buf.WriteString(instrumentID)
	buf.WriteString(`","price":`)
	buf.WriteString(fmt.Sprintf("%g", price))
	buf.WriteString(`,"volume":`)
	buf.WriteString(fmt.Sprintf("%d", volume))
	buf.WriteString(`,"ts":`)
	buf.WriteString(fmt.Sprintf("%d", ts))
	buf.WriteString("}}")
	safeBroadcast(accountKey, buf)
	bufferPool.Put(buf)
}

// PushSettleNotice 结算完成推送
func PushSettleNotice(accountKey, date string, tradeCount, cancelled int) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	buf.WriteString(`{"account_key":"`)
	buf.WriteString(accountKey)
	buf.WriteString(`","type":"settle","data":{`)
	buf.WriteString(`"date":"`)
	buf.WriteString(date)
	buf.WriteString(`","trade_count":`)
	buf.WriteString(fmt.Sprintf("%d", tradeCount))
	buf.WriteString(`,"cancelled_orders":`)
	buf.WriteString(fmt.Sprintf("%d", cancelled))
	buf.WriteString("}}")
	safeBroadcast(accountKey, buf)
	bufferPool.Put(buf)
}

var broker *service.BrokerService

// InjectBroker 注入账户引擎服务实例
func InjectBroker(b *service.BrokerService) {
	broker = b
}

// NewWebSocketServer WebSocket 服务端
func NewWebSocketServer(addr string) *server.Hertz {
	h := server.Default(server.WithHostPorts(addr))
	h.NoHijackConnPool = true

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		log.Printf("[WS] /ws handler called, path=%s, method=%s", c.Path(), c.Request.Method())
		// 分布式路由中间件逻辑迁移到ws
		middleware.DistributedRouteMiddleware()(ctx, c)
		if c.IsAborted() {
			log.Printf("[WS] connection aborted by DistributedRouteMiddleware, path=%s", c.Path())
			return
		}
		err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
			log.Printf("[WS] connection upgraded: %v", conn.RemoteAddr())
			defer func() {
				cleanConnFromAllAccounts(conn)
				if err := conn.Close(); err != nil {
					log.Printf("close error: %v", err)
				}
				log.Printf("[WS] connection closed: %v", conn.RemoteAddr())
			}()

			for {
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					log.Printf("read error: %v", err)
					break
				}

				action, accountKey := parseAction(msg)
				if accountKey == "" {
					accountKey = util.DefaultAccountKey()
				}
				if action == "subscribe" {
					shard := GetAccountShard(accountKey)
					shard.Mu.Lock()
					if shard.Subs[accountKey] == nil {
						shard.Subs[accountKey] = make(map[*websocket.Conn]struct{})
					}
					shard.Subs[accountKey][conn] = struct{}{}
					shard.Mu.Unlock()
					ack := []byte(`{"type":"subscription_ack","account_key":"` + accountKey + `"}`)
					if err := conn.WriteMessage(mt, ack); err != nil {
						log.Printf("ack error: %v", err)
					}
					ensureAccountDispatcher(shard, accountKey)
					// 订阅后先推全量快照，后续是差分
					if broker != nil {
						if tree, err := broker.InitSnapshot(accountKey); err == nil {
							if b, e := json.Marshal(map[string]interface{}{
								"aid":  "rtn_data",
								"data": []interface{}{tree},
							}); e == nil {
								_ = conn.WriteMessage(mt, b)
							}
						}
					}
					continue
				}
				if action == "unsubscribe" {
					shard := GetAccountShard(accountKey)
					shard.Mu.Lock()
					if conns, ok := shard.Subs[accountKey]; ok {
						delete(conns, conn)
						if len(conns) == 0 {
							delete(shard.Subs, accountKey)
						}
					}
					shard.Mu.Unlock()
					ack := []byte(`{"type":"unsubscription_ack","account_key":"` + accountKey + `"}`)
					if err := conn.WriteMessage(mt, ack); err != nil {
						log.Printf("ack error: %v", err)
					}
					continue
				}
				if action == "insert_order" {
					var req model.InsertOrderMsg
					if err := json.Unmarshal(msg, &req); err != nil {
						log.Printf("invalid insert_order: %v", err)
						continue
					}
					if req.AccountKey == "" {
						req.AccountKey = accountKey
					}
					if !util.IsLocalAccount(req.AccountKey) {
						if migrated, pid := handler.AccountMigrationChecker(req.AccountKey); migrated {
							handler.MigrateWSRedirectHandler(conn, mt, req.AccountKey, pid)
							continue
						}
						ack := []byte(`{"type":"order_forwarded","account_key":"` + req.AccountKey + `"}`)
						if err := conn.WriteMessage(mt, ack); err != nil {
							log.Printf("order forward ack error: %v", err)
						}
						continue
					}
					if broker != nil {
						if _, _, err := broker.InsertOrder(req); err != nil {
							nack := []byte(`{"type":"order_nack","account_key":"` + req.AccountKey + `","msg":"` + err.Error() + `"}`)
							_ = conn.WriteMessage(mt, nack)
							continue
						}
					}
					ack := []byte(`{"type":"order_ack","account_key":"` + req.AccountKey + `"}`)
					if err := conn.WriteMessage(mt, ack); err != nil {
						log.Printf("order ack error: %v", err)
					}
					continue
				}
				if action == "cancel_order" {
					var req model.CancelOrderMsg
					if err := json.Unmarshal(msg, &req); err != nil {
						log.Printf("invalid cancel_order: %v", err)
						continue
					}
					if req.AccountKey == "" {
						req.AccountKey = accountKey
					}
					if broker != nil {
						if _, err := broker.CancelOrder(req); err != nil {
							log.Printf("cancel_order error: %v", err)
						}
					}
					ack := []byte(`{"type":"cancel_ack","account_key":"` + req.AccountKey + `"}`)
					if err := conn.WriteMessage(mt, ack); err != nil {
						log.Printf("ack error: %v", err)
					}
					continue
				}
				if action == "update_quote" {
					var req struct {
						AccountKey string    `json:"account_key"`
						Quote      sim.Quote `json:"quote"`
					}
					if err := json.Unmarshal(msg, &req); err != nil {
						log.Printf("invalid update_quote: %v", err)
						continue
					}
					if req.AccountKey == "" {
						req.AccountKey = accountKey
					}
					if broker != nil {
						if _, err := broker.UpdateQuote(req.AccountKey, req.Quote); err != nil {
							nack := []byte(`{"type":"quote_nack","account_key":"` + req.AccountKey + `","msg":"` + err.Error() + `"}`)
							_ = conn.WriteMessage(mt, nack)
						}
					}
					continue
				}
			}
		})
		if err != nil {
			log.Printf("upgrade error: %v", err)
		}
	})

	return h
}

// 用户ID到连接的映射
var userConnMap sync.Map // map[userID]*websocket.Conn

// RegisterUserConn 注册用户和连接的关系（需在用户登录或鉴权后调用）
func RegisterUserConn(userID string, conn *websocket.Conn) {
	userConnMap.Store(userID, conn)
}

// UnregisterUserConn 断开连接时清理
func UnregisterUserConn(userID string) {
	userConnMap.Delete(userID)
}

// Unicast 单播消息到指定 userID
func Unicast(userID string, msg []byte) {
	if v, ok := userConnMap.Load(userID); ok {
		if conn, ok := v.(*websocket.Conn); ok {
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
	}
}
