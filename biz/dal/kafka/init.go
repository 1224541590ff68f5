package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"simbroker/conf"
)

var (
	writers sync.Map // map[string]*kafka.Writer，按实际 topic 复用
)

// resolveTopic 把逻辑名（trades/orders）映射为配置里的实际 topic，
// 传入的已是实际 topic 时原样返回
func resolveTopic(topics map[string]string, name string) string {
	if t, ok := topics[name]; ok {
		return t
	}
	return name
}

// WriterFor 获取指定 topic 的 kafka.Writer，自动复用。
// 消息以 account_key 作 Key，Hash 均衡器保证同一账户落在固定分区，
// 消费侧按账户保序。
func WriterFor(name string) *kafka.Writer {
	kafkaConf := conf.GetConf().Kafka
	topic := resolveTopic(kafkaConf.Topics, name)
	if val, ok := writers.Load(topic); ok {
		return val.(*kafka.Writer)
	}
	brokers := kafkaConf.Brokers
	if len(brokers) == 0 {
		panic("Kafka brokers not configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	writers.Store(topic, writer)
	return writer
}

// InitWriters 预初始化配置里全部 topics 的 writer
func InitWriters() {
	for name := range conf.GetConf().Kafka.Topics {
		WriterFor(name)
	}
}

// Ping 拨号第一个 broker 验证连通性
func Ping(ctx context.Context) error {
	brokers := conf.GetConf().Kafka.Brokers
	if len(brokers) == 0 {
		return fmt.Errorf("kafka brokers not configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("connect kafka %s: %w", brokers[0], err)
	}
	return conn.Close()
}

// CloseAllWriters 关闭所有 writer，进程退出前调用
func CloseAllWriters() {
	writers.Range(func(key, value interface{}) bool {
		if w, ok := value.(*kafka.Writer); ok {
			_ = w.Close()
		}
		return true
	})
}

// Init 初始化 Kafka，连接失败直接 panic
func Init() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Ping(ctx); err != nil {
		panic(err)
	}
	InitWriters()
}
