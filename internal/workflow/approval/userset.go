package approval

// UserSet 按插入顺序保存的用户ID集合
// 首个待审批人由插入顺序决定，因此不能使用 map 的遍历顺序
type UserSet struct {
	ids   []string
	index map[string]struct{}
}

// NewUserSet 创建集合
func NewUserSet(ids ...string) *UserSet {
	s := &UserSet{index: make(map[string]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

// Add 添加用户，已存在或为空的ID忽略
func (s *UserSet) Add(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

// Union 合并另一个集合，保留各自的先后顺序
func (s *UserSet) Union(other *UserSet) {
	if other == nil {
		return
	}
	s.Add(other.ids...)
}

// Contains 是否包含
func (s *UserSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len 元素个数
func (s *UserSet) Len() int {
	return len(s.ids)
}

// IDs 按插入顺序返回副本
func (s *UserSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
