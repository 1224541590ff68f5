package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"simbroker/conf"
)

var Client *redis.Client

func Init() {
	Client = redis.NewClient(&redis.Options{
		Addr:     conf.GetConf().Redis.Address,
		Username: conf.GetConf().Redis.Username,
		Password: conf.GetConf().Redis.Password,
		DB:       conf.GetConf().Redis.DB,
	})
	if err := Client.Ping(context.Background()).Err(); err != nil {
		panic(err)
	}
}

func snapshotKey(accountKey string) string {
	return fmt.Sprintf("simbroker:snapshot:%s", accountKey)
}

// SaveSnapshot 缓存账户的完整状态树，重启与网关查询都走这里
func SaveSnapshot(ctx context.Context, accountKey string, tree map[string]any) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return Client.Set(ctx, snapshotKey(accountKey), data, 24*time.Hour).Err()
}

// LoadSnapshot 读取账户状态树缓存，未命中返回 nil
func LoadSnapshot(ctx context.Context, accountKey string) (map[string]any, error) {
	data, err := Client.Get(ctx, snapshotKey(accountKey)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// PublishPatches 把一次操作的增量发布到账户频道，WS 推送订阅这里
func PublishPatches(ctx context.Context, accountKey string, payload []byte) error {
	return Client.Publish(ctx, "simbroker:diff:"+accountKey, payload).Err()
}
