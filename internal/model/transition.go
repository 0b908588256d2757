package model

import (
	"fmt"
	"time"
)

// ============================================================================
// 状态机基础设施
//
// 每种可售实体的合法状态迁移统一收敛到一张 (操作 -> {当前状态 -> 目标状态}) 表，
// 校验只有一个入口。新增状态只需要改表，不需要翻找散落的调用点。
// ============================================================================

// InvalidTransitionError 非法状态迁移
// 携带实体类型、操作名、当前状态，调用方据此向前端返回真实的生命周期阶段
type InvalidTransitionError struct {
	Entity  string
	Op      string
	Current string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s 当前状态 %s 不允许执行 %s", e.Entity, e.Current, e.Op)
}

// transitionTable 操作 -> {合法的当前状态 -> 目标状态}
type transitionTable map[string]map[string]string

// next 查表，不合法返回 *InvalidTransitionError，不做任何变更
func (t transitionTable) next(entity, op, current string) (string, error) {
	rule, ok := t[op]
	if !ok {
		return "", &InvalidTransitionError{Entity: entity, Op: op, Current: current}
	}
	to, ok := rule[current]
	if !ok {
		return "", &InvalidTransitionError{Entity: entity, Op: op, Current: current}
	}
	return to, nil
}

// denyCancelDestination 驳回取消申请后实体应回到的状态
//
// 这是唯一一个目标状态依赖墙钟而不是纯状态表的迁移：
// 对比当前日期和投放窗口判断实体是尚未开始、正在投放还是已经结束。
// now 必须在执行时刻传入重新计算，不允许缓存。
func denyCancelDestination(now, startDate, endDate time.Time, pendingPublish, published, completed string) string {
	today := truncateDay(now)
	if today.Before(truncateDay(startDate)) {
		return pendingPublish
	}
	if today.After(truncateDay(endDate)) {
		return completed
	}
	return published
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween 两个日期相差的自然天数（只看日期部分，b 早于 a 时为负）
func DaysBetween(a, b time.Time) int {
	return int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}
