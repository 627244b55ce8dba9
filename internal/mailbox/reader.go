// Package mailbox polls the office IMAP folder for unseen messages.
package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"mailtriage/internal/config"
	"mailtriage/internal/emails"
	"mailtriage/internal/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
)

// session is the subset of the IMAP client used by the reader
type session interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

type dialFunc func(ctx context.Context) (session, error)

// Reader fetches unseen messages, one connection per call
type Reader struct {
	username string
	password string
	folder   string
	dial     dialFunc
	logger   zerolog.Logger
}

// Status is the result of a connection check
type Status struct {
	Mailbox  string `json:"mailbox"`
	Messages uint32 `json:"messages"`
	Unseen   uint32 `json:"unseen"`
}

// NewReader creates a reader for the configured mailbox
func NewReader(cfg *config.Config, logger zerolog.Logger) *Reader {
	addr := net.JoinHostPort(cfg.IMAPHost, fmt.Sprintf("%d", cfg.IMAPPort))
	timeout := time.Duration(cfg.IMAPTimeout) * time.Second
	tlsConfig := &tls.Config{
		ServerName:         cfg.IMAPHost,
		InsecureSkipVerify: cfg.IMAPSkipTLSVerify,
	}

	dial := func(ctx context.Context) (session, error) {
		dialer := &net.Dialer{Timeout: timeout}
		c, err := client.DialWithDialerTLS(dialer, addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		c.Timeout = timeout
		return c, nil
	}

	return newReader(cfg.IMAPUsername, cfg.IMAPPassword, cfg.IMAPMailbox, dial, logger)
}

func newReader(username, password, folder string, dial dialFunc, logger zerolog.Logger) *Reader {
	if folder == "" {
		folder = "INBOX"
	}
	return &Reader{
		username: username,
		password: password,
		folder:   folder,
		dial:     dial,
		logger:   logger.With().Str("component", "mailbox").Str("mailbox", folder).Logger(),
	}
}

func (r *Reader) connect(ctx context.Context) (session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := r.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	if err := s.Login(r.username, r.password); err != nil {
		r.logout(s)
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}
	return s, nil
}

// logout ends the session; connection resets at this point are expected
func (r *Reader) logout(s session) {
	if err := s.Logout(); err != nil {
		if isBenignDisconnect(err) {
			r.logger.Debug().Err(err).Msg("IMAP connection closed during logout")
			return
		}
		r.logger.Warn().Err(err).Msg("IMAP logout failed")
	}
}

// FetchUnseen returns every unseen message that could be parsed and flags
// exactly those as seen. Messages that fail to parse stay unseen.
func (r *Reader) FetchUnseen(ctx context.Context) ([]*models.RawMessage, error) {
	s, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer r.logout(s)

	if _, err := s.Select(r.folder, false); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", r.folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unseen messages: %w", err)
	}
	if len(uids) == 0 {
		r.logger.Debug().Msg("No unseen messages")
		return []*models.RawMessage{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Info().Int("count", len(uids)).Msg("Fetching unseen messages")

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.UidFetch(seqset, items, ch)
	}()

	messages := []*models.RawMessage{}
	parsed := new(imap.SeqSet)
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			r.logger.Warn().Uint32("uid", msg.Uid).Msg("Server returned no body")
			continue
		}
		content, err := io.ReadAll(body)
		if err != nil {
			r.logger.Warn().Err(err).Uint32("uid", msg.Uid).Msg("Failed to read message body")
			continue
		}

		raw, err := emails.ParseMessage(bytes.NewReader(content))
		if err != nil {
			r.logger.Warn().Err(err).Uint32("uid", msg.Uid).Msg("Failed to parse message, leaving it unseen")
			continue
		}
		raw.UID = msg.Uid
		messages = append(messages, raw)
		parsed.AddNum(msg.Uid)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if !parsed.Empty() {
		flags := []interface{}{imap.SeenFlag}
		if err := s.UidStore(parsed, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			// reference dedupe keeps a re-fetch harmless
			r.logger.Error().Err(err).Msg("Failed to mark messages as seen")
		}
	}

	r.logger.Info().Int("fetched", len(uids)).Int("parsed", len(messages)).Msg("Mailbox read complete")
	return messages, nil
}

// Check connects, logs in and reports the folder's message counts
func (r *Reader) Check(ctx context.Context) (*Status, error) {
	s, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer r.logout(s)

	status, err := s.Status(r.folder, []imap.StatusItem{imap.StatusMessages, imap.StatusUnseen})
	if err != nil {
		return nil, fmt.Errorf("failed to read status of %s: %w", r.folder, err)
	}

	return &Status{Mailbox: r.folder, Messages: status.Messages, Unseen: status.Unseen}, nil
}

func isBenignDisconnect(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, client.ErrAlreadyLoggedOut):
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "use of closed network connection")
}
