package main

import (
	"context"
	"log"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hertz-contrib/cors"
	"github.com/hertz-contrib/gzip"
	"github.com/hertz-contrib/logger/accesslog"
	"github.com/hertz-contrib/pprof"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"simbroker/biz/dal"
	"simbroker/biz/handler"
	"simbroker/biz/service"
	"simbroker/conf"
	"simbroker/middleware"
	wsserver "simbroker/server"
)

func main() {
	_ = godotenv.Load()
	cfg := conf.GetConf()

	initLogger(cfg)

	// 存储层：Postgres / Redis / Kafka / Pebble
	dal.Init()

	// 成交与订单的 Kafka 批量写入和消费
	service.InitKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topics["trades"])
	service.InitOrderKafkaWriter(cfg.Kafka.Topics["orders"])
	service.StartOrderKafkaConsumer(cfg.Kafka.Topics["orders"])

	// 账户引擎服务，差分结果经 WebSocket 广播
	broker := service.NewBrokerService(wsserver.Broadcast, wsserver.Unicast)
	handler.InitBroker(broker)
	wsserver.InjectBroker(broker)

	// Consul 注册与补偿任务
	accountKey := cfg.Broker.NodeID + "|" + cfg.Broker.Currency
	helper, err := service.NewConsulHelperWithAddrs(cfg.Registry.RegistryAddress)
	if err != nil {
		hlog.Warnf("Consul连接失败，降级为单机模式: %v", err)
	} else {
		if err := service.InitBrokerWithHelper(helper, cfg.Broker.NodeID, []string{accountKey}, cfg.Broker.BrokerPort); err != nil {
			hlog.Warnf("Consul注册失败: %v", err)
		}
		service.StartKlineCompensateTask(helper.Client())

		// 分区表热加载与账户级扩缩容
		if pm, err := service.NewPartitionManager(cfg.Registry.RegistryAddress); err != nil {
			hlog.Warnf("分区管理器初始化失败: %v", err)
		} else {
			if err := pm.LoadFromConsul(); err != nil {
				hlog.Warnf("分区表加载失败: %v", err)
			}
			pm.WatchPartitionTable(context.Background())
			handler.SetPartitionTable(pm.GetPartitionTable())
			scaler := service.NewPartitionAutoScaler(pm, service.Metrics, service.NewConsulWorkerLoadProvider(pm), time.Minute)
			go scaler.Run(context.Background())
		}
	}
	service.StartTradeCompensateTask(time.Minute)
	service.InitSettleJournal("log/settle.log", cfg.Hertz.LogMaxSize, cfg.Hertz.LogMaxBackups, cfg.Hertz.LogMaxAge)

	h := server.Default(server.WithHostPorts(cfg.Hertz.Address))
	if cfg.Hertz.EnablePprof {
		pprof.Register(h)
	}
	if cfg.Hertz.EnableGzip {
		h.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	if cfg.Hertz.EnableAccessLog {
		h.Use(accesslog.New())
	}
	h.Use(cors.Default())
	h.Use(middleware.DistributedRouteMiddleware())

	registerRoutes(h)

	h.OnShutdown = append(h.OnShutdown, func(ctx context.Context) {
		service.ShutdownOrderKafkaWriter()
	})

	// WebSocket 服务独立端口
	if cfg.Hertz.WsPort != "" {
		go func() {
			ws := wsserver.NewWebSocketServer(cfg.Hertz.WsPort)
			ws.Spin()
		}()
		log.Printf("WebSocket server started at %s", cfg.Hertz.WsPort)
	}

	h.Spin()
}

func registerRoutes(h *server.Hertz) {
	api := h.Group("/api")
	api.POST("/quote", handler.UpdateQuote)
	api.POST("/order", handler.InsertOrder)
	api.POST("/order/cancel", handler.CancelOrder)
	api.POST("/settle", handler.Settle)
	api.GET("/snapshot", handler.GetSnapshot)
	api.GET("/snapshot/init", handler.GetInitSnapshot)
	api.GET("/settle/log", handler.GetSettleLog)
	api.GET("/settlements", handler.GetSettlements)
	api.GET("/balance", handler.GetBalance)
	api.GET("/positions", handler.GetPositions)
	api.GET("/order/:id", handler.GetOrder)
	api.GET("/orders", handler.ListOrders)
	api.GET("/trades", handler.ListTrades)
	api.GET("/market/trades", handler.GetMarketTrades)
	api.GET("/market/ticker", handler.GetTicker)
	api.GET("/kline", handler.GetKline)
}

func initLogger(cfg *conf.Config) {
	if cfg.Hertz.LogFileName != "" {
		hlog.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Hertz.LogFileName,
			MaxSize:    cfg.Hertz.LogMaxSize,
			MaxBackups: cfg.Hertz.LogMaxBackups,
			MaxAge:     cfg.Hertz.LogMaxAge,
		})
	}
	hlog.SetLevel(conf.LogLevel())
}
