package imapmail

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const (
	// DefaultSearchLimit is applied when a search request does not name
	// its own limit.
	DefaultSearchLimit = 30

	// maxSearchResults caps how many UIDs a single search will fetch
	// metadata for, newest first, regardless of the requested limit.
	maxSearchResults = 500
)

// Client is a Mailbox backed by a live IMAP connection. All operations
// are serialized on an internal mutex; concurrent callers queue rather
// than interleave commands on the wire.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	cl       *imapclient.Client
	selected string
	selData  *imap.SelectData

	state atomic.Int32
}

var _ Mailbox = (*Client)(nil)

// Dial connects, upgrades to TLS as configured, and authenticates. The
// returned client is in the ready state. Dial failures are classified:
// unreachable hosts give connection_failed, certificate problems
// tls_error, rejected credentials auth_failed.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cfg: cfg, logger: logger}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	const op = "dial"
	start := time.Now()
	c.setState(StateConnecting)

	opts := &imapclient.Options{
		TLSConfig: &tls.Config{
			ServerName:         c.cfg.Host,
			InsecureSkipVerify: c.cfg.InsecureSkipVerify,
		},
	}

	cl, err := c.dialWithTimeout(ctx, opts)
	if err != nil {
		c.setState(StateFailed)
		c.observe(op, start, err)
		return err
	}

	c.setState(StateAuthenticating)
	if err := cl.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = cl.Close()
		c.setState(StateFailed)
		c.observe("login", start, err)
		return E(KindAuthFailed, "login", err)
	}

	c.cl = cl
	c.selected = ""
	c.selData = nil
	c.setState(StateReady)
	c.observe(op, start, nil)
	c.logger.Debug("imap connection established",
		slog.String("host", c.cfg.Host), slog.Bool("tls", c.cfg.UseTLS))
	return nil
}

// dialWithTimeout runs the blocking dial in a goroutine so the caller's
// context and the configured dial timeout are both honored. A dial that
// completes after the deadline is closed and discarded.
func (c *Client) dialWithTimeout(ctx context.Context, opts *imapclient.Options) (*imapclient.Client, error) {
	const op = "dial"

	type dialResult struct {
		cl  *imapclient.Client
		err error
	}
	ch := make(chan dialResult, 1)
	go func() {
		var (
			cl  *imapclient.Client
			err error
		)
		if c.cfg.UseTLS {
			cl, err = imapclient.DialTLS(c.cfg.Addr(), opts)
		} else {
			cl, err = imapclient.DialStartTLS(c.cfg.Addr(), opts)
		}
		ch <- dialResult{cl, err}
	}()

	discard := func() {
		if res := <-ch; res.cl != nil {
			_ = res.cl.Close()
		}
	}

	timer := time.NewTimer(c.cfg.dialTimeout())
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			if isTLSError(res.err) {
				return nil, E(KindTLS, op, res.err)
			}
			return nil, E(KindConnectionFailed, op, res.err)
		}
		return res.cl, nil
	case <-timer.C:
		go discard()
		return nil, Errorf(KindTimeout, op, "no response from %s within %s", c.cfg.Addr(), c.cfg.dialTimeout())
	case <-ctx.Done():
		go discard()
		return nil, E(KindConnectionFailed, op, ctx.Err())
	}
}

func isTLSError(err error) bool {
	var (
		record   tls.RecordHeaderError
		verify   *tls.CertificateVerificationError
		invalid  x509.CertificateInvalidError
		unknown  x509.UnknownAuthorityError
		hostname x509.HostnameError
	)
	return errors.As(err, &record) || errors.As(err, &verify) ||
		errors.As(err, &invalid) || errors.As(err, &unknown) ||
		errors.As(err, &hostname)
}

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// State reports the lifecycle state. Unlike the operations it never
// blocks on the command mutex.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) observe(op string, start time.Time, err error) {
	if c.cfg.Observer == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.cfg.Observer(op, status, time.Since(start))
}

// ready guards every operation. The caller must hold c.mu.
func (c *Client) ready(op string) error {
	switch c.State() {
	case StateReady:
		return nil
	case StateClosed:
		return Errorf(KindConnectionFailed, op, "connection is closed")
	default:
		return Errorf(KindConnectionFailed, op, "connection is not ready (%s)", c.State())
	}
}

// fail classifies a command error. Protocol-level rejections (NO/BAD)
// leave the connection usable; anything else marks it failed.
func (c *Client) fail(op string, err error) error {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return E(KindCommand, op, err)
	}
	c.setState(StateFailed)
	c.selected = ""
	c.selData = nil
	kind := KindConnectionFailed
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		kind = KindTimeout
	}
	c.logger.Warn("imap connection lost",
		slog.String("operation", op), slog.Any("error", err))
	return E(kind, op, err)
}

// ensureSelected switches the connection to folder unless it is already
// selected, returning the (possibly cached) SELECT response.
func (c *Client) ensureSelected(op, folder string) (*imap.SelectData, error) {
	if folder == c.selected && c.selData != nil {
		return c.selData, nil
	}
	start := time.Now()
	data, err := c.cl.Select(folder, nil).Wait()
	c.observe("select", start, err)
	if err != nil {
		c.selected = ""
		c.selData = nil
		return nil, c.fail(op, err)
	}
	c.selected = folder
	c.selData = data
	return data, nil
}

func parseUID(op, id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, Errorf(KindNotFound, op, "invalid message id %q", id)
	}
	return imap.UID(n), nil
}

// ListFolders returns every folder the account can see.
func (c *Client) ListFolders(ctx context.Context) ([]FolderInfo, error) {
	const op = "list_folders"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, E(KindTimeout, op, err)
	}

	start := time.Now()
	boxes, err := c.cl.List("", "*", nil).Collect()
	c.observe(op, start, err)
	if err != nil {
		return nil, c.fail(op, err)
	}

	folders := make([]FolderInfo, 0, len(boxes))
	for _, box := range boxes {
		attrs := make([]string, 0, len(box.Attrs))
		for _, a := range box.Attrs {
			attrs = append(attrs, string(a))
		}
		folders = append(folders, FolderInfo{
			Name:       box.Mailbox,
			Delimiter:  string(box.Delim),
			Attributes: attrs,
		})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

// Search finds messages in folder matching q, newest first.
func (c *Client) Search(ctx context.Context, folder string, q SearchQuery) ([]EmailMetadata, error) {
	const op = "search"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, E(KindTimeout, op, err)
	}
	if _, err := c.ensureSelected(op, folder); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	if !q.Until.IsZero() {
		// SINCE is inclusive but BEFORE is exclusive, so bump the upper
		// bound by a day to make both ends of the range inclusive.
		criteria.Before = q.Until.AddDate(0, 0, 1)
	}
	if q.Text != "" {
		criteria.Text = []string{q.Text}
	}

	start := time.Now()
	data, err := c.cl.UIDSearch(criteria, nil).Wait()
	c.observe(op, start, err)
	if err != nil {
		return nil, c.fail(op, err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return []EmailMetadata{}, nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > maxSearchResults {
		uids = uids[:maxSearchResults]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(uids) > limit {
		uids = uids[:limit]
	}

	start = time.Now()
	msgs, err := c.cl.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:        true,
		Envelope:   true,
		Flags:      true,
		RFC822Size: true,
	}).Collect()
	c.observe("fetch", start, err)
	if err != nil {
		return nil, c.fail(op, err)
	}

	results := make([]EmailMetadata, 0, len(msgs))
	for _, msg := range msgs {
		results = append(results, metadataFromBuffer(msg))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date.After(results[j].Date) })
	return results, nil
}

func metadataFromBuffer(msg *imapclient.FetchMessageBuffer) EmailMetadata {
	md := EmailMetadata{
		ID:    strconv.FormatUint(uint64(msg.UID), 10),
		Size:  msg.RFC822Size,
		Flags: flagStrings(msg.Flags),
	}
	if env := msg.Envelope; env != nil {
		md.Subject = env.Subject
		md.Date = env.Date
		if len(env.From) > 0 {
			md.From = formatAddress(env.From[0])
		}
		for _, a := range env.To {
			md.To = append(md.To, formatAddress(a))
		}
	}
	return md
}

func formatAddress(a imap.Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Addr())
	}
	return a.Addr()
}

func flagStrings(flags []imap.Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f))
	}
	return out
}

// Fetch retrieves and parses one message by id.
func (c *Client) Fetch(ctx context.Context, folder, id string) (*EmailContent, error) {
	const op = "fetch"
	msg, raw, err := c.fetchBody(ctx, op, folder, id)
	if err != nil {
		return nil, err
	}

	content := &EmailContent{
		ID:    id,
		Flags: flagStrings(msg.Flags),
	}
	if env := msg.Envelope; env != nil {
		content.Subject = env.Subject
		content.Date = env.Date
		if len(env.From) > 0 {
			content.From = formatAddress(env.From[0])
		}
		for _, a := range env.To {
			content.To = append(content.To, formatAddress(a))
		}
		for _, a := range env.Cc {
			content.Cc = append(content.Cc, formatAddress(a))
		}
	}
	parseBody(raw, content)
	return content, nil
}

// FetchAttachment retrieves one named attachment from a message.
func (c *Client) FetchAttachment(ctx context.Context, folder, id, name string) (*AttachmentData, error) {
	const op = "fetch_attachment"
	_, raw, err := c.fetchBody(ctx, op, folder, id)
	if err != nil {
		return nil, err
	}
	return extractAttachment(op, raw, name)
}

// fetchBody fetches envelope, flags and the raw body of one message.
// The body is fetched with BODY.PEEK so reading never sets \Seen.
func (c *Client) fetchBody(ctx context.Context, op, folder, id string) (*imapclient.FetchMessageBuffer, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(op); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, E(KindTimeout, op, err)
	}
	uid, err := parseUID(op, id)
	if err != nil {
		return nil, nil, err
	}
	if _, err := c.ensureSelected(op, folder); err != nil {
		return nil, nil, err
	}

	section := &imap.FetchItemBodySection{Peek: true}
	start := time.Now()
	msgs, err := c.cl.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	c.observe(op, start, err)
	if err != nil {
		return nil, nil, c.fail(op, err)
	}
	if len(msgs) == 0 {
		return nil, nil, Errorf(KindNotFound, op, "message %s not found in %s", id, folder)
	}
	msg := msgs[0]
	raw := msg.FindBodySection(section)
	if raw == nil {
		return nil, nil, Errorf(KindNotFound, op, "message %s has no body", id)
	}
	return msg, raw, nil
}

// ListTags returns the flags usable in folder: the flags advertised by
// SELECT merged with the standard system flags. The `\*` marker is not
// a flag and is elided.
func (c *Client) ListTags(ctx context.Context, folder string) ([]string, error) {
	const op = "list_tags"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, E(KindTimeout, op, err)
	}
	// Keywords created since the folder was selected only show up in a
	// fresh SELECT response, so skip the cache here.
	c.selected = ""
	data, err := c.ensureSelected(op, folder)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	tags := []string{}
	add := func(f string) {
		if f == "" || f == "\\*" || seen[f] {
			return
		}
		seen[f] = true
		tags = append(tags, f)
	}
	for _, f := range []imap.Flag{
		imap.FlagSeen, imap.FlagAnswered, imap.FlagFlagged, imap.FlagDeleted, imap.FlagDraft,
	} {
		add(string(f))
	}
	for _, f := range data.PermanentFlags {
		add(string(f))
	}
	for _, f := range data.Flags {
		add(string(f))
	}
	return tags, nil
}

// GetTags returns the flags currently set on one message.
func (c *Client) GetTags(ctx context.Context, folder, id string) ([]string, error) {
	const op = "get_tags"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, E(KindTimeout, op, err)
	}
	uid, err := parseUID(op, id)
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureSelected(op, folder); err != nil {
		return nil, err
	}

	start := time.Now()
	msgs, err := c.cl.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:   true,
		Flags: true,
	}).Collect()
	c.observe(op, start, err)
	if err != nil {
		return nil, c.fail(op, err)
	}
	if len(msgs) == 0 {
		return nil, Errorf(KindNotFound, op, "message %s not found in %s", id, folder)
	}
	return flagStrings(msgs[0].Flags), nil
}

// ApplyTag sets a flag on a message. Setting a flag that is already
// present succeeds without change.
func (c *Client) ApplyTag(ctx context.Context, folder, id, tag string) error {
	return c.storeFlag(ctx, "apply_tag", folder, id, tag, imap.StoreFlagsAdd)
}

// RemoveTag clears a flag from a message. Clearing an absent flag
// succeeds without change.
func (c *Client) RemoveTag(ctx context.Context, folder, id, tag string) error {
	return c.storeFlag(ctx, "remove_tag", folder, id, tag, imap.StoreFlagsDel)
}

func (c *Client) storeFlag(ctx context.Context, op, folder, id, tag string, sop imap.StoreFlagsOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return E(KindTimeout, op, err)
	}
	uid, err := parseUID(op, id)
	if err != nil {
		return err
	}
	if _, err := c.ensureSelected(op, folder); err != nil {
		return err
	}

	start := time.Now()
	cmd := c.cl.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     sop,
		Silent: true,
		Flags:  []imap.Flag{imap.Flag(tag)},
	}, nil)
	err = cmd.Close()
	c.observe(op, start, err)
	if err != nil {
		return c.fail(op, err)
	}
	return nil
}

// Move transfers one message to another folder. Servers without MOVE
// fall back to COPY, flag \Deleted and EXPUNGE inside the library.
func (c *Client) Move(ctx context.Context, folder, id, dest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(ctx, "move", folder, id, dest)
}

func (c *Client) moveLocked(ctx context.Context, op, folder, id, dest string) error {
	if err := c.ready(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return E(KindTimeout, op, err)
	}
	uid, err := parseUID(op, id)
	if err != nil {
		return err
	}
	if _, err := c.ensureSelected(op, folder); err != nil {
		return err
	}

	start := time.Now()
	_, err = c.cl.Move(imap.UIDSetNum(uid), dest).Wait()
	c.observe(op, start, err)
	if err != nil {
		return c.fail(op, err)
	}
	return nil
}

// MoveMany moves each id in turn and reports a status per id. Once the
// connection is lost, the remaining ids fail with the same error rather
// than being silently skipped.
func (c *Client) MoveMany(ctx context.Context, folder string, ids []string, dest string) ([]MoveStatus, error) {
	const op = "move_many"
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]MoveStatus, 0, len(ids))
	var broken error
	for _, id := range ids {
		if broken != nil {
			statuses = append(statuses, MoveStatus{ID: id, Err: broken})
			continue
		}
		err := c.moveLocked(ctx, op, folder, id, dest)
		if err != nil && Retryable(KindOf(err)) {
			broken = err
		}
		statuses = append(statuses, MoveStatus{ID: id, Moved: err == nil, Err: err})
	}
	return statuses, nil
}

// Close logs out and drops the connection. It is safe to call more than
// once; after Close every operation reports connection_failed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == StateClosed {
		return nil
	}
	var err error
	if c.cl != nil {
		if c.State() == StateReady {
			// Best effort; the server may already be gone.
			_ = c.cl.Logout().Wait()
		}
		err = c.cl.Close()
		c.cl = nil
	}
	c.selected = ""
	c.selData = nil
	c.setState(StateClosed)
	return err
}
