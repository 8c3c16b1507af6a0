package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/backend/internal/domain"
)

func testComposer() *Composer {
	return NewComposer(ComposerConfig{
		Domain:         "example.com",
		ReplyLocalPart: "reply",
		ContactFrom:    "contact@example.com",
		Destination:    "admin.inbox@gmail.com",
		ResendFrom:     "no-reply@example.com",
	})
}

func testThread() *domain.Thread {
	return &domain.Thread{
		Token:        "AbC123def456AbC123def456AbC123de",
		VisitorEmail: "visitor@example.org",
		VisitorName:  "Visitor",
		Subject:      "Question",
		CreatedAt:    time.Now(),
	}
}

func TestContactNotification(t *testing.T) {
	c := testComposer()
	thread := testThread()

	msg := c.ContactNotification(thread, "hello admin")

	assert.Equal(t, "contact@example.com", msg.From)
	assert.Equal(t, "admin.inbox@gmail.com", msg.To)
	assert.Equal(t, "[Contact] Visitor - Question", msg.Subject)
	assert.Equal(t, "reply+AbC123def456AbC123def456AbC123de@example.com", msg.ReplyTo)
	assert.Contains(t, msg.Text, "hello admin")
	assert.Contains(t, msg.Text, "visitor@example.org")
}

func TestVisitorReplyNotification(t *testing.T) {
	c := testComposer()
	thread := testThread()

	msg := c.VisitorReplyNotification(thread, "follow-up")

	assert.Equal(t, "[Visitor Reply] Question", msg.Subject)
	assert.Equal(t, "admin.inbox@gmail.com", msg.To)
	assert.Contains(t, msg.Text, "follow-up")
	assert.Contains(t, msg.ReplyTo, thread.Token)
}

func TestAdminReply(t *testing.T) {
	c := testComposer()
	thread := testThread()

	msg := c.AdminReply(thread, "here is my answer")

	assert.Equal(t, "no-reply@example.com", msg.From)
	assert.Equal(t, "visitor@example.org", msg.To)
	assert.Equal(t, "Re: Question", msg.Subject)
	assert.Equal(t, "here is my answer", msg.Text)
	assert.Contains(t, msg.ReplyTo, thread.Token)
}

func TestRenderSetsLoopMarker(t *testing.T) {
	msg := testComposer().ContactNotification(testThread(), "body text")

	raw, err := Render(msg)
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, LoopMarkerHeader+": "+LoopMarkerValue)
	assert.Contains(t, s, "Reply-To: "+msg.ReplyTo)
	assert.Contains(t, s, "To: <admin.inbox@gmail.com>")
	assert.Contains(t, s, "body text")
}
