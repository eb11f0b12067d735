package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// DecodeApiSecret 解码 base64url 格式的 API secret
// 将 - 替换为 +，_ 替换为 /，并移除非 base64 字符
func DecodeApiSecret(secret string) ([]byte, error) {
	sanitized := strings.ReplaceAll(secret, "-", "+")
	sanitized = strings.ReplaceAll(sanitized, "_", "/")
	sanitized = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') || r == '+' || r == '/' || r == '=' {
			return r
		}
		return -1
	}, sanitized)

	keyData, err := base64.StdEncoding.DecodeString(sanitized)
	if err != nil {
		return nil, fmt.Errorf("解码 secret 失败: %w", err)
	}
	return keyData, nil
}

// BuildPolyHmacSignature 构建 Polymarket CLOB HMAC 签名
// message = timestamp + method + requestPath + body
func BuildPolyHmacSignature(
	secret string,
	timestamp int64,
	method string,
	requestPath string,
	body *string,
) (string, error) {
	keyData, err := DecodeApiSecret(secret)
	if err != nil {
		return "", err
	}
	return HmacSign(keyData, timestamp, method, requestPath, body), nil
}

// HmacSign 用已解码的密钥计算签名（下单热路径用，避免每次解码 secret）
func HmacSign(keyData []byte, timestamp int64, method, requestPath string, body *string) string {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath
	if body != nil {
		message += *body
	}

	mac := hmac.New(sha256.New, keyData)
	mac.Write([]byte(message))
	sigBase64 := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// 转换为 URL 安全的 base64（保留 = 后缀）
	sigURLSafe := strings.ReplaceAll(sigBase64, "+", "-")
	sigURLSafe = strings.ReplaceAll(sigURLSafe, "/", "_")
	return sigURLSafe
}
