package smtp

import (
	"context"
	"strings"
	"sync"
	"testing"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailbridge/backend/internal/pool"
	"mailbridge/backend/internal/service"
)

type recordingRouter struct {
	mu       sync.Mutex
	received []*service.InboundMessage
}

func (r *recordingRouter) Dispatch(_ context.Context, msg *service.InboundMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, msg)
}

func (r *recordingRouter) messages() []*service.InboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*service.InboundMessage(nil), r.received...)
}

func newTestSession(t *testing.T, router *recordingRouter) (*session, *pool.WorkerPool) {
	t.Helper()

	tasks := pool.NewWorkerPool(1, 8, zap.NewNop())
	tasks.Start(context.Background())

	backend := NewBackend(router, tasks, zap.NewNop(), "Example.COM")
	sess, err := backend.NewSession(nil)
	require.NoError(t, err)
	return sess.(*session), tasks
}

func TestRcpt_DomainFiltering(t *testing.T) {
	router := &recordingRouter{}
	sess, tasks := newTestSession(t, router)
	defer tasks.Stop()

	// 本域收件人放行，大小写不敏感
	require.NoError(t, sess.Rcpt("<Reply+AbC123@EXAMPLE.com>", nil))
	require.NoError(t, sess.Rcpt("contact@example.com", nil))

	// 外部域名 550 拒绝
	err := sess.Rcpt("victim@elsewhere.org", nil)
	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)

	// 畸形地址 501
	err = sess.Rcpt("not-an-address", nil)
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 501, smtpErr.Code)

	assert.Equal(t, []string{"reply+abc123@example.com", "contact@example.com"}, sess.recipients)
}

func TestData_DispatchesParsedMessage(t *testing.T) {
	router := &recordingRouter{}
	sess, tasks := newTestSession(t, router)

	require.NoError(t, sess.Mail("<Visitor@Example.ORG>", nil))
	require.NoError(t, sess.Rcpt("reply+tok@example.com", nil))

	raw := strings.Join([]string{
		"From: Visitor Name <visitor@example.org>",
		"To: reply+tok@example.com",
		"Subject: Re: Question",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"hello from the visitor",
	}, "\r\n")

	require.NoError(t, sess.Data(strings.NewReader(raw)))
	tasks.Stop()

	msgs := router.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "visitor@example.org", msgs[0].EnvelopeFrom)
	assert.Equal(t, "reply+tok@example.com", msgs[0].EnvelopeTo)
	assert.Equal(t, "Visitor Name", msgs[0].FromName)
	assert.Equal(t, "Re: Question", msgs[0].Subject)
	assert.Equal(t, "hello from the visitor", strings.TrimRight(msgs[0].Text, "\r\n"))
	assert.False(t, msgs[0].HasLoopMarker)
}

func TestData_HeaderRecipientsPrecedeEnvelope(t *testing.T) {
	router := &recordingRouter{}
	sess, tasks := newTestSession(t, router)

	require.NoError(t, sess.Mail("bounce@forwarder.example.net", nil))
	require.NoError(t, sess.Rcpt("catchall@example.com", nil))

	raw := strings.Join([]string{
		"From: visitor@example.org",
		"To: Reply Inbox <Reply+AbCtok@Example.com>, other@example.org",
		"Subject: Re: Question",
		"Content-Type: text/plain",
		"",
		"body",
	}, "\r\n")

	require.NoError(t, sess.Data(strings.NewReader(raw)))
	tasks.Stop()

	msgs := router.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"reply+abctok@example.com", "other@example.org", "catchall@example.com"}, msgs[0].Recipients)
	assert.Equal(t, "catchall@example.com", msgs[0].EnvelopeTo)
}

func TestData_MalformedMessageRejected(t *testing.T) {
	router := &recordingRouter{}
	sess, tasks := newTestSession(t, router)
	defer tasks.Stop()

	err := sess.Data(strings.NewReader("no headers at all"))
	var smtpErr *gosmtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 554, smtpErr.Code)
}

func TestParseEmail_MultipartPrefersPlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: someone@example.org",
		"Subject: mixed",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"caf=C3=A9 reply",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>caf&eacute; reply</p>",
		"--BOUNDARY--",
		"",
	}, "\r\n")

	parsed, err := ParseEmail([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "café reply", strings.TrimRight(parsed.Text, "\r\n"))
	assert.Contains(t, parsed.HTML, "caf&eacute;")
}

func TestParseEmail_LoopMarkerDetected(t *testing.T) {
	raw := strings.Join([]string{
		"From: contact@example.com",
		"Subject: [Contact] test",
		"X-Mailbridge-Relay: 1",
		"Content-Type: text/plain",
		"",
		"body",
	}, "\r\n")

	parsed, err := ParseEmail([]byte(raw))
	require.NoError(t, err)
	assert.True(t, parsed.HasLoopMarker)
}

func TestParseEmail_EncodedSubjectDecoded(t *testing.T) {
	raw := strings.Join([]string{
		"From: someone@example.org",
		"Subject: =?utf-8?q?caf=C3=A9_question?=",
		"Content-Type: text/plain",
		"",
		"body",
	}, "\r\n")

	parsed, err := ParseEmail([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "café question", parsed.Subject)
}
