package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNextAdStatus(t *testing.T) {
	cases := []struct {
		current string
		op      string
		want    string
	}{
		{AdStatusPendingApproval, AdOpApprove, AdStatusPendingPayment},
		{AdStatusPendingApproval, AdOpReject, AdStatusRejected},
		{AdStatusPendingPayment, AdOpReject, AdStatusRejected},
		{AdStatusPendingPayment, AdOpPaymentSuccess, AdStatusPendingPublish},
		{AdStatusPendingPublish, AdOpPublish, AdStatusPublished},
		{AdStatusPendingPublish, AdOpRequestRefund, AdStatusPendingCancel},
		{AdStatusPublished, AdOpRequestRefund, AdStatusPendingCancel},
		{AdStatusPublished, AdOpCancel, AdStatusCancelled},
		{AdStatusPendingCancel, AdOpCancel, AdStatusCancelled},
		{AdStatusPublished, AdOpComplete, AdStatusCompleted},
	}
	for _, c := range cases {
		got, err := NextAdStatus(c.current, c.op)
		require.NoError(t, err, "%s + %s", c.current, c.op)
		assert.Equal(t, c.want, got, "%s + %s", c.current, c.op)
	}
}

// 迁移表之外的所有 (状态, 操作) 组合必须全部拒绝
func TestNextAdStatusRejectsEverythingElse(t *testing.T) {
	allStatuses := []string{
		AdStatusPendingApproval, AdStatusPendingPayment, AdStatusPendingPublish,
		AdStatusPublished, AdStatusCompleted, AdStatusPendingCancel,
		AdStatusCancelled, AdStatusRejected,
	}
	allOps := []string{
		AdOpApprove, AdOpReject, AdOpPaymentSuccess, AdOpPublish,
		AdOpRequestRefund, AdOpCancel, AdOpComplete,
	}

	allowed := map[string]bool{
		AdStatusPendingApproval + "/" + AdOpApprove:        true,
		AdStatusPendingApproval + "/" + AdOpReject:         true,
		AdStatusPendingPayment + "/" + AdOpReject:          true,
		AdStatusPendingPayment + "/" + AdOpPaymentSuccess:  true,
		AdStatusPendingPublish + "/" + AdOpPublish:         true,
		AdStatusPendingPublish + "/" + AdOpRequestRefund:   true,
		AdStatusPublished + "/" + AdOpRequestRefund:        true,
		AdStatusPublished + "/" + AdOpCancel:               true,
		AdStatusPendingCancel + "/" + AdOpCancel:           true,
		AdStatusPublished + "/" + AdOpComplete:             true,
	}

	for _, status := range allStatuses {
		for _, op := range allOps {
			_, err := NextAdStatus(status, op)
			if allowed[status+"/"+op] {
				assert.NoError(t, err, "%s + %s", status, op)
				continue
			}
			var transitionErr *InvalidTransitionError
			require.True(t, errors.As(err, &transitionErr), "%s + %s 应当被拒绝", status, op)
			assert.Equal(t, status, transitionErr.Current)
			assert.Equal(t, op, transitionErr.Op)
		}
	}
}

// 驳回取消申请：目标状态按当前日期相对投放窗口三选一
func TestNextAdStatusDenyCancel(t *testing.T) {
	start := day("2026-03-10")
	end := day("2026-03-19")

	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"窗口未开始回到待上线", day("2026-03-09"), AdStatusPendingPublish},
		{"开始日当天回到投放中", day("2026-03-10"), AdStatusPublished},
		{"窗口内回到投放中", day("2026-03-15"), AdStatusPublished},
		{"结束日当天回到投放中", day("2026-03-19"), AdStatusPublished},
		{"窗口已结束回到已完成", day("2026-03-20"), AdStatusCompleted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := NextAdStatusDenyCancel(AdStatusPendingCancel, c.now, start, end)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestNextAdStatusDenyCancelRequiresPendingCancel(t *testing.T) {
	_, err := NextAdStatusDenyCancel(AdStatusPublished, day("2026-03-15"), day("2026-03-10"), day("2026-03-19"))
	var transitionErr *InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, AdOpDenyCancel, transitionErr.Op)
}

func TestNextExpoStatusDenyCancel(t *testing.T) {
	start := day("2026-05-01")
	end := day("2026-05-07")

	got, err := NextExpoStatusDenyCancel(ExpoStatusPendingCancel, day("2026-04-20"), start, end)
	require.NoError(t, err)
	assert.Equal(t, ExpoStatusPendingPublish, got)

	got, err = NextExpoStatusDenyCancel(ExpoStatusPendingCancel, day("2026-05-03"), start, end)
	require.NoError(t, err)
	assert.Equal(t, ExpoStatusPublished, got)

	got, err = NextExpoStatusDenyCancel(ExpoStatusPendingCancel, day("2026-05-08"), start, end)
	require.NoError(t, err)
	assert.Equal(t, ExpoStatusCompleted, got)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day("2026-03-10"), day("2026-03-10")))
	assert.Equal(t, 3, DaysBetween(day("2026-03-10"), day("2026-03-13")))
	assert.Equal(t, -1, DaysBetween(day("2026-03-10"), day("2026-03-09")))
	// 只看日期部分，时分秒不参与
	a := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(a, b))
}

func TestIsPaymentSettled(t *testing.T) {
	assert.True(t, IsPaymentSettled(PaymentStatusSuccess))
	assert.True(t, IsPaymentSettled(PaymentStatusRefunded))
	assert.True(t, IsPaymentSettled(PaymentStatusPartialRefunded))
	assert.False(t, IsPaymentSettled(PaymentStatusPending))
	assert.False(t, IsPaymentSettled(PaymentStatusFailed))
}
