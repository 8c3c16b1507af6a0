// Package token 负责线程令牌的生成，以及令牌与子地址
// （local+token@domain）之间的嵌入和提取。
//
// 路由状态全部编码在收件地址里，传输层自身不持有任何状态；
// 地址中除令牌外不携带其他秘密。
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// Length 是令牌的固定长度：24 字节经无填充 base64url 编码后为 32 字符。
const Length = 32

// Generate 生成不可猜测的线程令牌。
//
// 碰撞概率视为可忽略，不做显式去重。
func Generate() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ReplyAddress 构造嵌入令牌的子地址，如 reply+TOKEN@example.com。
func ReplyAddress(localPart, tok, domain string) string {
	return fmt.Sprintf("%s+%s@%s", localPart, tok, domain)
}

// ExtractFromAddress 从 localPart+TOKEN@domain 形式的地址中提取令牌。
//
// 匹配不区分大小写；模式缺失或畸形（如 "+" 出现在域名之后、
// 起始位置不早于结束位置）时返回 ok=false。
func ExtractFromAddress(address, localPart, domain string) (string, bool) {
	lower := strings.ToLower(address)
	prefix := strings.ToLower(localPart) + "+"
	suffix := "@" + strings.ToLower(domain)

	if !strings.Contains(lower, prefix) || !strings.HasSuffix(lower, suffix) {
		return "", false
	}

	start := strings.Index(lower, prefix) + len(prefix)
	end := strings.LastIndex(lower, suffix)
	if start >= end {
		return "", false
	}

	// 从原始地址取子串，保留令牌大小写
	return address[start:end], true
}

// BareAddress 从 "Name <addr>" 形式的邮件头中提取纯地址并转小写。
func BareAddress(input string) string {
	if open := strings.Index(input, "<"); open >= 0 {
		if close := strings.Index(input[open:], ">"); close > 0 {
			input = input[open+1 : open+close]
		}
	}
	return strings.ToLower(strings.TrimSpace(input))
}
