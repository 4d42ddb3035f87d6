// Package snowflake 生成消息 ID
// 同一节点内 ID 单调递增，可直接作为消息的持久化顺序
package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 初始化雪花算法节点，machineID 范围 0-1023，多实例部署时每台机器需唯一
// 应在程序启动时调用一次，重复调用无效
func Init(machineID int64) {
	nodeOnce.Do(func() {
		if machineID < 0 || machineID > 1023 {
			zap.L().Warn("snowflake machineID 超出范围，使用默认值 1", zap.Int64("machineID", machineID))
			machineID = 1
		}
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("初始化 snowflake 节点失败", zap.Error(err))
		}
		zap.L().Info("snowflake 节点已初始化", zap.Int64("machineID", machineID))
	})
}

// GenerateID 生成雪花 ID，未初始化时使用节点 1
func GenerateID() int64 {
	Init(1)
	return node.Generate().Int64()
}
