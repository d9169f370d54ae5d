package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ErrNotConnected is returned when the IMAP session is not established
var ErrNotConnected = errors.New("not connected")

// ErrMessageNotFound is returned when a mailbox has no message with the requested id
var ErrMessageNotFound = errors.New("message not found in mailbox")

// ClientConfig configuration for IMAP client
type ClientConfig struct {
	Username    string
	Password    string
	Server      string // host:port
	Mailbox     string
	DialTimeout time.Duration
}

// Client is an IMAP mailbox whose message ids are UIDs
type Client struct {
	config    ClientConfig
	client    *client.Client
	logger    *slog.Logger
	mu        sync.Mutex
	connected bool
}

// NewClient creates a new IMAP client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Client{
		config: cfg,
		logger: logger.With("component", "imap", "username", cfg.Username),
	}
}

// Connect connects to the IMAP server, logs in and selects the mailbox
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.logger.Info("connecting to IMAP server", "server", c.config.Server)

	// Connect with TLS and timeout
	timeout := c.config.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", c.config.Server, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(c.config.Username, c.config.Password); err != nil {
		imapClient.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	if _, err := imapClient.Select(c.config.Mailbox, false); err != nil {
		imapClient.Logout()
		return fmt.Errorf("failed to select %s: %w", c.config.Mailbox, err)
	}

	c.client = imapClient
	c.connected = true
	c.logger.Info("connected to IMAP server", "mailbox", c.config.Mailbox)

	return nil
}

// SearchCriteria selects messages that are unseen or dated on or after since
func SearchCriteria(since time.Time) *imap.SearchCriteria {
	unseen := imap.NewSearchCriteria()
	unseen.WithoutFlags = []string{imap.SeenFlag}

	recent := imap.NewSearchCriteria()
	recent.Since = since

	criteria := imap.NewSearchCriteria()
	criteria.Or = [][2]*imap.SearchCriteria{{unseen, recent}}
	return criteria
}

// ListCandidateIDs returns the UIDs of unseen messages and of messages
// dated on or after since, in ascending order
func (c *Client) ListCandidateIDs(ctx context.Context, since time.Time) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uids, err := c.client.UidSearch(SearchCriteria(since))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}

	c.logger.Debug("candidate messages", "count", len(ids), "since", since.Format("2-Jan-2006"))
	return ids, nil
}

// FetchRaw returns the full source of the message with the given UID
func (c *Client) FetchRaw(ctx context.Context, id string) ([]byte, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var raw []byte
	found := false
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		b, err := io.ReadAll(body)
		if err != nil {
			c.logger.Warn("failed to read message body", "uid", msg.Uid, "error", err)
			continue
		}
		raw = b
		found = true
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}

	return raw, nil
}

// Close logs out and drops the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil
	}

	c.connected = false
	err := c.client.Logout()
	c.client = nil
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	c.logger.Info("disconnected from IMAP server")
	return nil
}
