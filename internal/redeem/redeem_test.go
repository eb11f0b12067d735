package redeem

import (
	"context"
	"testing"
)

// sidecar 先打印进度日志，结果约定在最后一行 JSON
func TestLastJSONLine(t *testing.T) {
	out := []byte(`redeeming condition 0xabc...
waiting for tx confirmation
{"status":"PENDING","message":"submitted"}
{"status":"SUCCESS","txHash":"0xdeadbeef","message":"redeemed 6.0 USDC"}
`)
	res, ok := lastJSONLine(out)
	if !ok {
		t.Fatalf("应解析出结果")
	}
	if res.Status != StatusSuccess || res.TxHash != "0xdeadbeef" {
		t.Fatalf("结果异常: %+v", res)
	}
}

func TestLastJSONLineNoResult(t *testing.T) {
	if _, ok := lastJSONLine([]byte("plain logs\nno json here\n")); ok {
		t.Fatalf("无 JSON 输出不应解析成功")
	}
	// status 为空的 JSON 不算结果
	if _, ok := lastJSONLine([]byte(`{"txHash":"0x1"}`)); ok {
		t.Fatalf("缺 status 的行不应算结果")
	}
}

func TestScriptRedeemerUnconfigured(t *testing.T) {
	r := &ScriptRedeemer{}
	res := r.Redeem(context.Background(), "0xabc", false)
	if res.Status != StatusSkipped {
		t.Fatalf("未配置脚本应跳过: %+v", res)
	}
}

func TestNoopRedeemer(t *testing.T) {
	res := NoopRedeemer{}.Redeem(context.Background(), "0xabc", true)
	if res.Status != StatusSkipped {
		t.Fatalf("dry-run 应跳过: %+v", res)
	}
}

// 队列满时丢弃而不是阻塞对账循环
func TestQueueNonBlocking(t *testing.T) {
	q := NewQueue(NoopRedeemer{}) // 未启动消费者
	for i := 0; i < queueDepth; i++ {
		if !q.Enqueue("0xabc", false) {
			t.Fatalf("第 %d 个任务不应被丢弃", i)
		}
	}
	if q.Enqueue("0xoverflow", false) {
		t.Fatalf("队列满应丢弃")
	}
}
