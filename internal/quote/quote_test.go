package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractNewContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "english reply header",
			in:   "Hello\nOn Jan 1 John wrote:\n> old text",
			want: "Hello",
		},
		{
			name: "portuguese reply header",
			in:   "Oi\nEm 1 de jan. João escreveu:\n> texto antigo",
			want: "Oi",
		},
		{
			name: "original message separator",
			in:   "Thanks!\n----- Original Message -----\nFrom: someone",
			want: "Thanks!",
		},
		{
			name: "separator any case",
			in:   "Thanks!\n--- ORIGINAL MESSAGE ---\nold",
			want: "Thanks!",
		},
		{
			name: "double quote marker terminates",
			in:   "New part\n>> quoted twice\nmore quoted",
			want: "New part",
		},
		{
			name: "single quote lines skipped not terminating",
			in:   "First\n> quoted inline\nSecond",
			want: "First\nSecond",
		},
		{
			name: "reposted from header",
			in:   "Reply body\nFrom: admin@example.com\nSubject: re",
			want: "Reply body",
		},
		{
			name: "quote only reply is empty",
			in:   "> everything\n> is quoted",
			want: "",
		},
		{
			name: "no markers keeps everything",
			in:   "line one\nline two",
			want: "line one\nline two",
		},
		{
			name: "crlf reply header still terminates",
			in:   "Here is my answer\r\nOn Jan 1 Visitor wrote:\r\n> original question\r\n",
			want: "Here is my answer",
		},
		{
			name: "crlf quote only reply is empty",
			in:   "> everything\r\n> is quoted\r\n",
			want: "",
		},
		{
			name: "crlf from header terminates",
			in:   "Reply body\r\nFrom: visitor@example.org\r\n",
			want: "Reply body",
		},
		{
			name: "trims surrounding whitespace",
			in:   "\n\nHello\n\nOn Monday Jane wrote:\n> hi",
			want: "Hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractNewContent(tt.in))
		})
	}
}
