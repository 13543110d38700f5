package stages

import "errors"

var (
	// ErrInvalidConfig 阶段配置无效
	ErrInvalidConfig = errors.New("invalid stage config")

	// ErrConfigNotFound 阶段配置文件不存在
	ErrConfigNotFound = errors.New("stage config file not found")

	// ErrStageDirNotFound 阶段配置目录不存在
	ErrStageDirNotFound = errors.New("stage directory not found")

	// ErrUnknownCapability 未知的能力标签
	ErrUnknownCapability = errors.New("unknown stage capability")
)
