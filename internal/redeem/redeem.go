package redeem

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"
)

const scriptTimeout = 30 * time.Second

// Result 赎回执行结果（sidecar 最后一行 JSON）
type Result struct {
	Status  string `json:"status"`
	TxHash  string `json:"txHash"`
	Message string `json:"message"`
}

// 赎回状态
const (
	StatusSuccess = "SUCCESS"
	StatusSkipped = "SKIPPED"
	StatusError   = "ERROR"
)

// Redeemer 赎回能力抽象
type Redeemer interface {
	Redeem(ctx context.Context, conditionID string, negRisk bool) Result
}

// ScriptRedeemer 通过外部 sidecar 脚本执行链上赎回
// 脚本自行从环境变量读取私钥，这里只传市场参数
type ScriptRedeemer struct {
	Script string
}

// Redeem 执行脚本并解析输出里最后一行合法 JSON
func (r *ScriptRedeemer) Redeem(ctx context.Context, conditionID string, negRisk bool) Result {
	if r.Script == "" {
		return Result{Status: StatusSkipped, Message: "赎回脚本未配置"}
	}

	ctx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	args := []string{"--condition-id", conditionID}
	if negRisk {
		args = append(args, "--neg-risk")
	}
	cmd := exec.CommandContext(ctx, r.Script, args...)
	cmd.Env = os.Environ()

	out, err := cmd.Output()
	if res, ok := lastJSONLine(out); ok {
		return res
	}
	if err != nil {
		return Result{Status: StatusError, Message: err.Error()}
	}
	return Result{Status: StatusError, Message: "脚本输出缺少 JSON 结果"}
}

// lastJSONLine 从脚本 stdout 提取最后一行可解析的结果
// 脚本可能先打印进度日志，结果约定在最后一行
func lastJSONLine(out []byte) (Result, bool) {
	var (
		res   Result
		found bool
	)
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var r Result
		if err := json.Unmarshal([]byte(line), &r); err == nil && r.Status != "" {
			res = r
			found = true
		}
	}
	return res, found
}

// NoopRedeemer dry-run：不触链，直接跳过
type NoopRedeemer struct{}

func (NoopRedeemer) Redeem(_ context.Context, _ string, _ bool) Result {
	return Result{Status: StatusSkipped, Message: "dry-run"}
}
