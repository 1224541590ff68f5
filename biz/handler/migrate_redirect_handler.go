package handler

import (
	"net/http"
	"os"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"

	"simbroker/biz/model"
)

var (
	partitionTableOnce sync.Once
	partitionTable     *model.PartitionTable
)

// SetPartitionTable 注入分区表（由 PartitionManager 的 watch 回调更新）
func SetPartitionTable(pt *model.PartitionTable) {
	partitionTable = pt
}

// GetPartitionTable 获取全局分区表
func GetPartitionTable() *model.PartitionTable {
	partitionTableOnce.Do(func() {
		if partitionTable == nil {
			partitionTable = model.NewPartitionTable()
		}
	})
	return partitionTable
}

// GetCurrentPartitionID 获取当前分区ID（用 NodeID 作为分区ID）
func GetCurrentPartitionID() string {
	return os.Getenv("SIM_NODE_ID")
}

// AccountMigrationChecker 判断账户是否已迁移到其他分区
func AccountMigrationChecker(accountKey string) (migrated bool, newPartitionID string) {
	table := GetPartitionTable()
	currentID := GetCurrentPartitionID()
	pid, ok := table.AccountToPartition[accountKey]
	if ok && pid != "" && pid != currentID {
		return true, pid
	}
	return false, ""
}

// MigrateRedirectHandler 旧分区收到账户写请求时，判断是否迁移，若迁移则重定向
func MigrateRedirectHandler(ctx *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(ctx.Query("account_key")))
	migrated, newPartitionID := AccountMigrationChecker(accountKey)
	if migrated {
		ctx.JSON(http.StatusConflict, map[string]interface{}{
			"code":             40901,
			"msg":              "账户已迁移，请重试到新分区",
			"new_partition_id": newPartitionID,
		})
		return
	}
	ctx.JSON(http.StatusOK, map[string]interface{}{
		"code": 0,
		"msg":  "写入成功",
	})
}
