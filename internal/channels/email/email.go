// Package email is the Email channel adapter: polls an IMAP mailbox for
// unseen messages and sends replies via SMTP. Built on
// github.com/emersion/go-imap/v2 and github.com/emersion/go-message.
package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	emmessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/channels"
)

// Config holds the IMAP/SMTP connection details for one mailbox.
type Config struct {
	IMAPAddr string
	SMTPAddr string
	Username string
	Password string
	Interval time.Duration
}

// Channel polls a mailbox over IMAP and relays unseen messages inbound;
// outbound replies go out over SMTP.
type Channel struct {
	*channels.Base
	cfg    Config
	cancel context.CancelFunc
}

// New creates an Email channel from cfg.
func New(cfg Config, b *bus.Bus, allowlist []string) *Channel {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Channel{Base: channels.NewBase("email", b, allowlist), cfg: cfg}
}

// Start begins the polling loop.
func (c *Channel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.pollLoop(runCtx)
	return nil
}

// Stop cancels the polling loop.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Channel) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := c.pollOnce(ctx); err != nil {
			slog.Warn("email: poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Channel) pollOnce(ctx context.Context) error {
	client, err := imapclient.DialTLS(c.cfg.IMAPAddr, nil)
	if err != nil {
		return fmt.Errorf("email: dial %s: %w", c.cfg.IMAPAddr, err)
	}
	defer client.Close()

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		return fmt.Errorf("email: login: %w", err)
	}
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("email: select inbox: %w", err)
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	result, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("email: search unseen: %w", err)
	}
	seqs := result.AllSeqNums()
	if len(seqs) == 0 {
		return nil
	}

	seqSet := imap.SeqSetNum(seqs...)
	fetchOpts := &imap.FetchOptions{Envelope: true, BodySection: []*imap.FetchItemBodySection{{}}}
	msgs := client.Fetch(seqSet, fetchOpts)
	for {
		msg := msgs.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		c.handleMessage(buf)
	}
	return msgs.Close()
}

func (c *Channel) handleMessage(msg *imapclient.FetchMessageBuffer) {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return
	}
	sender := msg.Envelope.From[0]
	addr := fmt.Sprintf("%s@%s", sender.Mailbox, sender.Host)

	var body []byte
	for _, section := range msg.BodySection {
		body = section.Bytes
		break
	}
	content := string(body)
	if entity, err := emmessage.Read(bytes.NewReader(body)); err == nil {
		if data, err := io.ReadAll(entity.Body); err == nil {
			content = string(data)
		}
	}

	c.Publish(bus.InboundEvent{
		SenderID:  addr,
		ChatID:    addr,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Send delivers one outbound reply over SMTP, addressed to evt.ChatID (the
// sender's email address recorded on the originating inbound event).
func (c *Channel) Send(ctx context.Context, evt bus.OutboundEvent) error {
	to, err := mail.ParseAddress(evt.ChatID)
	if err != nil {
		return fmt.Errorf("email: invalid recipient %q: %w", evt.ChatID, err)
	}
	body := fmt.Sprintf("To: %s\r\nSubject: Re:\r\n\r\n%s", to.Address, evt.Content)
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, hostOnly(c.cfg.SMTPAddr))
	return smtp.SendMail(c.cfg.SMTPAddr, auth, c.cfg.Username, []string{to.Address}, []byte(body))
}

func hostOnly(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
