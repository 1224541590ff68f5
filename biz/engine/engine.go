package engine

import (
	"github.com/panjf2000/ants/v2"
)

var BroadcastPool *ants.Pool

func InitBroadcastPool(size int) error {
	pool, err := ants.NewPool(size)
	if err != nil {
		return err
	}
	BroadcastPool = pool
	return nil
}

// Broadcaster 广播回调类型，按账户频道推送
type Broadcaster func(accountKey string, msg []byte)

// Unicaster 单播回调类型
type Unicaster func(accountKey string, msg []byte)
