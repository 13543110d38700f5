package stages

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/medcrew/backend/internal/pkg/pipeline"
	"k8s.io/klog/v2"
)

// Load 加载阶段序列
// dir 为空时返回内置阶段；否则用 dir/<id>.yaml 覆盖同名内置阶段
func Load(dir string) ([]pipeline.StageSpec, error) {
	stages := Default()
	if dir == "" {
		return stages, nil
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrStageDirNotFound, dir)
	}

	parser := NewParser()
	for i, base := range stages {
		path := filepath.Join(dir, base.ID+".yaml")
		spec, err := parser.Parse(path, base)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				klog.V(6).Infof("[stages.Load] 未找到覆盖配置，使用内置阶段: %s", base.ID)
				continue
			}
			return nil, err
		}
		klog.V(6).Infof("[stages.Load] 已加载阶段覆盖配置: %s", path)
		stages[i] = spec
	}

	if err := pipeline.ValidateStages(stages); err != nil {
		return nil, err
	}
	return stages, nil
}
