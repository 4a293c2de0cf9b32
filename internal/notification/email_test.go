package notification

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"MirrorScope/internal/config"
)

// smtpSession is the transcript captured by the stub server.
type smtpSession struct {
	from string
	rcpt []string
	data string
}

// startSMTPServer runs a minimal SMTP server for one session and delivers
// the transcript on the returned channel. It advertises no AUTH so the
// client proceeds unauthenticated.
func startSMTPServer(t *testing.T) (string, <-chan smtpSession) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	sessions := make(chan smtpSession, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))

		var session smtpSession
		r := bufio.NewReader(conn)
		write := func(line string) { conn.Write([]byte(line + "\r\n")) }

		write("220 localhost ESMTP ready")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250-localhost")
				write("250 SIZE 1048576")
			case strings.HasPrefix(cmd, "MAIL FROM:"):
				session.from = line[len("MAIL FROM:"):]
				write("250 OK")
			case strings.HasPrefix(cmd, "RCPT TO:"):
				session.rcpt = append(session.rcpt, line[len("RCPT TO:"):])
				write("250 OK")
			case cmd == "DATA":
				write("354 End data with <CR><LF>.<CR><LF>")
				var body strings.Builder
				for {
					dl, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if strings.TrimRight(dl, "\r\n") == "." {
						break
					}
					body.WriteString(dl)
				}
				session.data = body.String()
				write("250 OK queued")
			case cmd == "QUIT":
				write("221 bye")
				sessions <- session
				return
			default:
				write("250 OK")
			}
		}
	}()

	return ln.Addr().String(), sessions
}

func TestEmailNotifierSend(t *testing.T) {
	addr, sessions := startSMTPServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("failed to split address %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse port %q: %v", portStr, err)
	}

	n := NewEmailNotifier(config.SMTPConfig{
		Host: host,
		Port: port,
		From: "probe@example.com",
		To:   "oncall@example.com,netops@example.com",
	})

	if err := n.Send("Traffic Alert: 1.5 Gbps", "rate exceeded the ceiling"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case session := <-sessions:
		if !strings.Contains(session.from, "probe@example.com") {
			t.Errorf("MAIL FROM = %q, want probe@example.com", session.from)
		}
		if len(session.rcpt) != 2 {
			t.Errorf("recipients = %v, want both comma-separated addresses", session.rcpt)
		}
		if !strings.Contains(session.data, "Subject: Traffic Alert: 1.5 Gbps") {
			t.Errorf("message missing subject header:\n%s", session.data)
		}
		if !strings.Contains(session.data, "rate exceeded the ceiling") {
			t.Errorf("message missing body:\n%s", session.data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no SMTP session completed")
	}
}
