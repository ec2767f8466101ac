package docstore

import (
	"fmt"
	"time"

	"github.com/MaxChen228/Linker-sub001/internal/util"
)

// Transform 把一个版本的文档原样数据转换成下一个版本。
// 转换必须是纯函数：不得修改入参，结果通过返回值给出，
// 这样 Load 每次重跑迁移都是安全的。
type Transform func(raw any) (any, error)

type migrationKey struct {
	from, to string
}

// MigrationRegistry 保存 (from, to) 两两注册的版本转换
type MigrationRegistry struct {
	transforms map[migrationKey]Transform
}

func NewMigrationRegistry() *MigrationRegistry {
	return &MigrationRegistry{transforms: make(map[migrationKey]Transform)}
}

func (r *MigrationRegistry) Register(from, to string, fn Transform) {
	r.transforms[migrationKey{from: from, to: to}] = fn
}

// path 在注册图上做 BFS，返回 from 到 to 要经过的版本序列（不含 from）
func (r *MigrationRegistry) path(from, to string) []string {
	type node struct {
		version string
		trail   []string
	}
	visited := map[string]bool{from: true}
	queue := []node{{version: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for key := range r.transforms {
			if key.from != cur.version || visited[key.to] {
				continue
			}
			trail := append(append([]string{}, cur.trail...), key.to)
			if key.to == to {
				return trail
			}
			visited[key.to] = true
			queue = append(queue, node{version: key.to, trail: trail})
		}
	}
	return nil
}

// Apply 把 raw 从 from 版本升级到 to 版本。
// from == to 时原样返回；找不到路径时返回 ErrNoMigrationPath。
func (r *MigrationRegistry) Apply(raw any, from, to string, now time.Time) (any, error) {
	if from == to {
		return raw, nil
	}

	steps := r.path(from, to)
	if steps == nil {
		return nil, fmt.Errorf("%w: %s -> %s", util.ErrNoMigrationPath, from, to)
	}

	cur := raw
	prev := from
	for _, next := range steps {
		fn := r.transforms[migrationKey{from: prev, to: next}]
		upgraded, err := fn(cur)
		if err != nil {
			return nil, fmt.Errorf("migrate %s -> %s: %w", prev, next, err)
		}
		cur = upgraded
		prev = next
	}

	doc, ok := cur.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("migrate %s -> %s: result is not a document object", from, to)
	}
	doc["version"] = to
	doc["migrated_at"] = now.UTC().Format(time.RFC3339)
	return doc, nil
}
