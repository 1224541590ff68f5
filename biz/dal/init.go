package dal

import (
	"simbroker/biz/dal/kafka"
	"simbroker/biz/dal/pebble"
	"simbroker/biz/dal/pg"
	"simbroker/biz/dal/redis"
)

func Init() {
	pg.Init()
	redis.Init()
	kafka.Init()
	pebble.Init("")
}
