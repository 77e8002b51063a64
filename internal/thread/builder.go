// Package thread 把扁平的消息列表重建为 根消息→回复 的线程视图。
//
// 构建器是纯读侧投影：不修改任何存储数据，也不因为畸形的线程
// 形状报错——父消息缺失的回复会被提升为根消息而不是被丢弃，
// 引用环会被拆成孤儿根，保证收件箱渲染永远不被阻塞。
package thread

import (
	"sort"

	"communitymsg/backend/internal/domain"
)

// Build 从某个用户可见的扁平消息列表重建线程列表。
//
// 规则：
//   - InReplyTo 为空的消息是根；回复沿 InReplyTo 链归属到
//     可达的最终祖先（单遍建立 父->子 索引，线性复杂度）。
//   - 父消息不在列表中（已删除或对该用户不可见）时，回复挂到
//     最近的可解析祖先下；祖先完全不可达则提升为根。
//   - 祖先链出现环时终止遍历，环上的消息各自降级为孤儿根，
//     环外的前缀消息归属到进入环的那个节点的线程。
//   - 线程未读 = 根未读 或 任意回复未读。
//   - 线程按最近活动时间倒序；线程内回复按创建时间倒序展示；
//     时间相同时用插入序号决定先后，时钟偏斜下仍保持确定性。
//
// 空输入返回空列表，不是错误。
func Build(messages []domain.InboxMessage) []domain.Thread {
	if len(messages) == 0 {
		return []domain.Thread{}
	}

	byID := make(map[string]*domain.InboxMessage, len(messages))
	for i := range messages {
		byID[messages[i].ID] = &messages[i]
	}

	// rootOf[id] = 该消息归属线程的根消息 ID
	rootOf := make(map[string]string, len(messages))
	for i := range messages {
		resolveRoot(&messages[i], byID, rootOf)
	}

	// 单遍建立 根 -> 回复 分组
	replies := make(map[string][]*domain.InboxMessage)
	var rootIDs []string
	for i := range messages {
		m := &messages[i]
		rootID := rootOf[m.ID]
		if rootID == m.ID {
			rootIDs = append(rootIDs, m.ID)
			continue
		}
		replies[rootID] = append(replies[rootID], m)
	}

	threads := make([]domain.Thread, 0, len(rootIDs))
	for _, rootID := range rootIDs {
		root := byID[rootID]
		group := replies[rootID]

		// 回复按创建时间倒序（最新在前），同刻按插入序号倒序
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.After(group[j].CreatedAt)
			}
			return group[i].Seq > group[j].Seq
		})

		t := domain.Thread{
			Root:         root,
			Replies:      group,
			IsUnread:     !root.Read,
			LastActivity: root.CreatedAt,
		}
		if t.Replies == nil {
			t.Replies = []*domain.InboxMessage{}
		}
		for _, r := range group {
			if !r.Read {
				t.IsUnread = true
			}
			if r.CreatedAt.After(t.LastActivity) {
				t.LastActivity = r.CreatedAt
			}
		}
		threads = append(threads, t)
	}

	// 线程按最近活动倒序，同刻按根消息插入序号倒序
	sort.Slice(threads, func(i, j int) bool {
		if !threads[i].LastActivity.Equal(threads[j].LastActivity) {
			return threads[i].LastActivity.After(threads[j].LastActivity)
		}
		return threads[i].Root.Seq > threads[j].Root.Seq
	})
	return threads
}

// CountUnread 返回线程列表中未读线程的数量。
func CountUnread(threads []domain.Thread) int {
	count := 0
	for i := range threads {
		if threads[i].IsUnread {
			count++
		}
	}
	return count
}

// resolveRoot 沿祖先链解析消息归属的根，结果写入 rootOf 备忘。
//
// 遍历对每个节点只做一次完整解析：无环路径上的所有节点共享
// 同一个根；检测到环时，环上节点各自成为孤儿根，环前缀节点
// 归属到进入环的节点。
func resolveRoot(m *domain.InboxMessage, byID map[string]*domain.InboxMessage, rootOf map[string]string) string {
	if rootID, ok := rootOf[m.ID]; ok {
		return rootID
	}

	path := []*domain.InboxMessage{m}
	inPath := map[string]int{m.ID: 0}
	cur := m

	for {
		if cur.InReplyTo == "" {
			// 真正的根
			return memoPath(path, cur.ID, rootOf)
		}
		parent, ok := byID[cur.InReplyTo]
		if !ok {
			// 父消息对该用户不可达：当前节点提升为根
			return memoPath(path, cur.ID, rootOf)
		}
		if rootID, ok := rootOf[parent.ID]; ok {
			// 父消息已解析过，直接归属同一线程
			return memoPath(path, rootID, rootOf)
		}
		if j, ok := inPath[parent.ID]; ok {
			// 环：path[j:] 是环成员，各自降级为孤儿根；
			// path[:j] 归属到进入环的节点 parent
			for _, c := range path[j:] {
				rootOf[c.ID] = c.ID
			}
			for _, p := range path[:j] {
				rootOf[p.ID] = parent.ID
			}
			return rootOf[m.ID]
		}
		inPath[parent.ID] = len(path)
		path = append(path, parent)
		cur = parent
	}
}

// memoPath 把路径上全部节点的根写入备忘并返回根 ID。
func memoPath(path []*domain.InboxMessage, rootID string, rootOf map[string]string) string {
	for _, n := range path {
		rootOf[n.ID] = rootID
	}
	return rootOf[path[0].ID]
}
