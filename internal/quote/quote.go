// Package quote 从邮件回复正文中剥离引用内容。
//
// 这是尽力而为的启发式扫描，不是 RFC 2822 级别的回复解析器，
// 无法覆盖所有客户端的引用格式。
package quote

import (
	"regexp"
	"strings"
)

// Markers 是终止扫描的引用标记模式表。
//
// 命中任意一条即认为其后全部是引用内容。保持为包级变量，
// 部署方可按需追加本地化的标记。
var Markers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^On .+ wrote:$`),
	regexp.MustCompile(`(?i)^Em .+ escreveu:$`),
	regexp.MustCompile(`(?i)^-{3,}\s*Original Message\s*-{3,}$`),
	regexp.MustCompile(`(?i)^-{3,}\s*Mensagem Original\s*-{3,}$`),
	regexp.MustCompile(`^>{2,}`),
	regexp.MustCompile(`(?i)^From:\s+.+@.+$`),
}

// ExtractNewContent 逐行扫描正文，返回第一个引用标记之前的新内容。
//
// 以单个 ">" 开头的行视为穿插引用，跳过但不终止扫描。
func ExtractNewContent(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))

scan:
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")

		for _, marker := range Markers {
			if marker.MatchString(line) {
				break scan
			}
		}

		if strings.HasPrefix(line, ">") {
			continue
		}

		result = append(result, line)
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
