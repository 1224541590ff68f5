package handler

// MigrateWSRedirectHandler（WebSocket场景）
// 账户迁移期间，WebSocket 写请求（如 insert_order）重定向到新分区，直接向连接发送重定向消息
func MigrateWSRedirectHandler(conn interface{ WriteMessage(int, []byte) error }, mt int, accountKey string, newPartitionID string) {
	msg := []byte(`{"type":"migrate_redirect","account_key":"` + accountKey + `","new_partition_id":"` + newPartitionID + `"}`)
	_ = conn.WriteMessage(mt, msg)
}
