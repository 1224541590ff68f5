package handler

import (
	"encoding/json"
	"log"

	"github.com/cloudwego/netpoll"
	"github.com/hertz-contrib/websocket"

	"simbroker/biz/model"
	"simbroker/biz/service"
	"simbroker/server"
)

// ConnContext 连接上下文，记录该连接订阅的账户
type ConnContext struct {
	Conn     netpoll.Connection
	Accounts map[string]struct{} // 已订阅账户
}

var broker *service.BrokerService

// InjectBroker 注入账户引擎服务实例
func InjectBroker(b *service.BrokerService) {
	broker = b
}

// OnMessage 处理收到的 WebSocket 消息
func OnMessage(ctx *ConnContext, data []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("invalid message: %v", err)
		return
	}

	action, _ := msg["action"].(string)
	accountKey, _ := msg["account_key"].(string)

	switch action {
	case "subscribe":
		if accountKey != "" {
			ctx.Accounts[accountKey] = struct{}{}
			ack := map[string]interface{}{
				"type":        "subscription_ack",
				"account_key": accountKey,
			}
			ackBytes, _ := json.Marshal(ack)
			ctx.Conn.Write(ackBytes)
		}
	case "unsubscribe":
		if accountKey != "" {
			delete(ctx.Accounts, accountKey)
		}
	case "insert_order":
		var order model.InsertOrderMsg
		if err := json.Unmarshal(data, &order); err != nil {
			log.Printf("invalid insert_order: %v", err)
			return
		}
		if order.AccountKey == "" {
			order.AccountKey = accountKey
		}
		if order.InstrumentID == "" {
			resp := map[string]interface{}{
				"type": "error",
				"msg":  "instrument_id required",
			}
			respBytes, _ := json.Marshal(resp)
			ctx.Conn.Write(respBytes)
			return
		}
		// 分布式路由逻辑已由中间件处理，这里只走本地账户引擎
		if broker == nil {
			return
		}
		orderID, _, err := broker.InsertOrder(order)
		if err != nil {
			resp := map[string]interface{}{
				"type": "error",
				"msg":  err.Error(),
			}
			respBytes, _ := json.Marshal(resp)
			ctx.Conn.Write(respBytes)
			return
		}
		resp := map[string]interface{}{
			"type":        "order_ack",
			"order_id":    orderID,
			"account_key": order.AccountKey,
			"status":      "received",
		}
		respBytes, _ := json.Marshal(resp)
		ctx.Conn.Write(respBytes)
	case "cancel_order":
		var cancel model.CancelOrderMsg
		if err := json.Unmarshal(data, &cancel); err != nil {
			log.Printf("invalid cancel_order: %v", err)
			return
		}
		if cancel.AccountKey == "" {
			cancel.AccountKey = accountKey
		}
		if broker != nil {
			if _, err := broker.CancelOrder(cancel); err != nil {
				log.Printf("cancel_order error: %v", err)
			}
		}
	default:
		log.Printf("unknown action: %s", action)
	}
}

// OnClose 连接关闭时清理资源
func OnClose(ctx *ConnContext) {
	for acct := range ctx.Accounts {
		importServerUnsubscribe(acct, ctx.Conn)
	}
	ctx.Accounts = nil
}

// importServerUnsubscribe 退订账户频道
func importServerUnsubscribe(accountKey string, conn netpoll.Connection) {
	if wsConn, ok := getWebSocketConn(conn); ok {
		shard := server.GetAccountShard(accountKey)
		shard.Mu.Lock()
		if conns, ok := shard.Subs[accountKey]; ok {
			delete(conns, wsConn)
			if len(conns) == 0 {
				delete(shard.Subs, accountKey)
			}
		}
		shard.Mu.Unlock()
	}
}

// getWebSocketConn 依赖连接封装暴露底层 websocket.Conn
func getWebSocketConn(conn netpoll.Connection) (*websocket.Conn, bool) {
	ws, ok := conn.(interface{ UnderlyingConn() *websocket.Conn })
	if !ok {
		return nil, false
	}
	return ws.UnderlyingConn(), true
}
