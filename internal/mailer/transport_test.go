package mailer

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{
			name:      "unknown host",
			err:       fmt.Errorf("dial failed: %w", &net.DNSError{Err: "no such host", Name: "smtp.invalid", IsNotFound: true}),
			code:      CodeDNS,
			retryable: true,
		},
		{
			name:      "temporary resolver failure",
			err:       &net.DNSError{Err: "server misbehaving", Name: "smtp.example.com", IsTemporary: true},
			code:      CodeDNSTemporary,
			retryable: true,
		},
		{
			name:      "connect timeout",
			err:       &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded},
			code:      CodeTimeout,
			retryable: true,
		},
		{
			name:      "connection reset",
			err:       &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)},
			code:      CodeReset,
			retryable: true,
		},
		{
			name:      "connection refused",
			err:       &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			code:      CodeRefused,
			retryable: false,
		},
		{
			name:      "authentication",
			err:       stderrors.New("dial failed: SMTP AUTH failed: 535 5.7.8 Authentication credentials invalid"),
			code:      CodeAuth,
			retryable: false,
		},
		{
			name:      "canceled",
			err:       fmt.Errorf("dial failed: %w", context.Canceled),
			code:      CodeCanceled,
			retryable: false,
		},
		{
			name:      "anything else",
			err:       stderrors.New("554 message rejected"),
			code:      CodeSend,
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)

			var te *TransportError
			require.True(t, stderrors.As(err, &te))
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.err.Error(), err.Error())
		})
	}

	assert.Nil(t, Classify(nil))
	assert.False(t, IsRetryable(stderrors.New("plain")))

	wrapped := fmt.Errorf("operation failed after 3 attempts: %w", Classify(&net.DNSError{Err: "no such host", IsNotFound: true}))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, MsgDNSFailure, sendErrorMessage(wrapped))
}

func TestSMTPTransport_GreetingTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// accept and never send a banner
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	transport := NewSMTPTransport(config.EmailConfig{
		ConnectionTimeout: time.Second,
		GreetingTimeout:   100 * time.Millisecond,
		SocketTimeout:     time.Second,
	}, zaptest.NewLogger(t))

	settings := &types.SmtpSettings{Host: host, Port: port, User: "reports@example.com", Pass: "x", From: "reports@example.com"}
	msg := &EmailMessage{From: "reports@example.com", To: "client@example.com", Subject: "s", Text: "t"}

	start := time.Now()
	err = transport.Send(context.Background(), settings, msg)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var te *TransportError
	require.True(t, stderrors.As(err, &te))
	assert.Equal(t, CodeTimeout, te.Code)
	assert.True(t, IsRetryable(err))
}

func TestSMTPTransport_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	transport := NewSMTPTransport(config.EmailConfig{ConnectionTimeout: time.Second, GreetingTimeout: time.Second}, nil)
	settings := &types.SmtpSettings{Host: "127.0.0.1", Port: addr.Port, User: "reports@example.com", Pass: "x", From: "reports@example.com"}
	msg := &EmailMessage{From: "reports@example.com", To: "client@example.com", Subject: "s", Text: "t"}

	err = transport.Send(context.Background(), settings, msg)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}
