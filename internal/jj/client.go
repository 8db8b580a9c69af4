package jj

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cj3636/kahva/internal/graph"
	"github.com/cj3636/kahva/internal/ops"
)

// Config keys holding the revision sets.
const (
	KahvaLogKey = "revsets.kahva-log"
	LogKey      = "revsets.log"
)

const timeLayout = "2006-01-02T15:04:05Z"

// recordFields are evaluated for every commit, each followed by a NUL.
var recordFields = []string{
	`commit_id`,
	`change_id`,
	`parents.map(|c| c.commit_id()).join(",")`,
	`author.name()`,
	`author.email()`,
	`author.timestamp().utc().format("%Y-%m-%dT%H:%M:%SZ")`,
	`committer.timestamp().utc().format("%Y-%m-%dT%H:%M:%SZ")`,
	`local_bookmarks.map(|b| b.name()).join(",")`,
	`tags.map(|t| t.name()).join(",")`,
	`if(immutable, "1")`,
	`if(conflict, "1")`,
	`if(current_working_copy, "1")`,
	`if(empty, "1")`,
	`if(root, "1")`,
	`description`,
}

var recordTemplate = strings.Join(recordFields, ` ++ "\0" ++ `) + ` ++ "\0"`

// Client talks to one jj workspace.
type Client struct {
	runner Runner
	dir    string
	logger *slog.Logger

	// mu serializes mutations so conflicts are credited to the command
	// that introduced them.
	mu sync.Mutex
}

var _ ops.Tool = (*Client)(nil)

// New creates a client for the workspace at dir.
func New(runner Runner, dir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{runner: runner, dir: dir, logger: logger}
}

// Dir is the workspace directory commands run in.
func (c *Client) Dir() string { return c.dir }

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--no-pager", "--color=never"}, args...)
	start := time.Now()
	out, err := c.runner.Run(ctx, c.dir, full...)
	c.logger.Debug("jj", "args", strings.Join(args, " "), "duration", time.Since(start), "error", err)
	return out, err
}

func (c *Client) lines(ctx context.Context, args ...string) ([]string, error) {
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Query evaluates revset and returns every commit in it, newest first, plus
// the parents just outside it.
func (c *Client) Query(ctx context.Context, revset string) (graph.History, error) {
	opID, err := c.OperationID(ctx)
	if err != nil {
		return graph.History{}, err
	}

	out, err := c.run(ctx, "log", "--no-graph", "--at-operation", opID, "-r", revset, "-T", recordTemplate)
	if err != nil {
		return graph.History{}, &QueryError{Revset: revset, Err: err}
	}
	records, err := parseRecords(out)
	if err != nil {
		return graph.History{}, &QueryError{Revset: revset, Err: err}
	}

	boundary, err := c.lines(ctx, "log", "--no-graph", "--at-operation", opID,
		"-r", fmt.Sprintf("parents((%s)) ~ (%s)", revset, revset), "-T", `commit_id ++ "\n"`)
	if err != nil {
		return graph.History{}, &QueryError{Revset: revset, Err: err}
	}

	h := graph.History{Revset: revset, OpID: opID, Records: records}
	for _, id := range boundary {
		h.Boundary = append(h.Boundary, graph.CommitID(id))
	}
	return h, nil
}

func parseRecords(out []byte) ([]graph.Record, error) {
	fields := bytes.Split(out, []byte{0})
	// Everything after the final terminator is noise.
	fields = fields[:len(fields)-1]
	n := len(recordFields)
	if len(fields)%n != 0 {
		return nil, fmt.Errorf("malformed log output: %d fields", len(fields))
	}

	records := make([]graph.Record, 0, len(fields)/n)
	for i := 0; i < len(fields); i += n {
		f := fields[i : i+n]
		str := func(j int) string { return string(f[j]) }
		rec := graph.Record{
			ID:       graph.CommitID(strings.TrimSpace(str(0))),
			ChangeID: graph.ChangeID(str(1)),
			Author: graph.Signature{
				Name:  str(3),
				Email: str(4),
			},
			Bookmarks:   splitList(str(7)),
			Tags:        splitList(str(8)),
			Immutable:   str(9) == "1",
			Conflict:    str(10) == "1",
			WorkingCopy: str(11) == "1",
			Empty:       str(12) == "1",
			Root:        str(13) == "1",
			Description: strings.TrimRight(str(14), "\n"),
		}
		for _, p := range splitList(str(2)) {
			rec.Parents = append(rec.Parents, graph.CommitID(p))
		}
		var err error
		if rec.Author.When, err = parseTime(str(5)); err != nil {
			return nil, fmt.Errorf("commit %s: author time: %w", rec.ID.Short(12), err)
		}
		if rec.Committed, err = parseTime(str(6)); err != nil {
			return nil, fmt.Errorf("commit %s: commit time: %w", rec.ID.Short(12), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ConfigString reads one configuration value.
func (c *Client) ConfigString(ctx context.Context, key string) (string, error) {
	out, err := c.run(ctx, "config", "get", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Revsets returns the editable and read-only revision sets. The editable one
// falls back to the read-only one when it is not configured.
func (c *Client) Revsets(ctx context.Context) (kahvaLog, log string, err error) {
	log, err = c.ConfigString(ctx, LogKey)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", LogKey, err)
	}
	kahvaLog, err = c.ConfigString(ctx, KahvaLogKey)
	if err != nil || kahvaLog == "" {
		c.logger.Debug("revset not configured, using fallback", "key", KahvaLogKey, "fallback", LogKey)
		kahvaLog = log
	}
	return kahvaLog, log, nil
}

// OperationID returns the id of the current operation.
func (c *Client) OperationID(ctx context.Context) (string, error) {
	lines, err := c.lines(ctx, "operation", "log", "--no-graph", "--limit", "1", "-T", `id ++ "\n"`)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("operation log is empty")
	}
	return lines[0], nil
}

// Rebase moves source and its descendants onto dest.
func (c *Client) Rebase(ctx context.Context, source, dest ops.Revision) (ops.Result, error) {
	return c.mutate(ctx, source.Ref(), "rebase", "-s", source.Ref(), "-d", dest.Ref())
}

// Squash folds the changes of source into into, keeping into's description.
func (c *Client) Squash(ctx context.Context, source, into ops.Revision) (ops.Result, error) {
	return c.mutate(ctx, into.Ref(), "squash", "--from", source.Ref(), "--into", into.Ref(), "--use-destination-message")
}

// MoveBookmark points bookmark name at to, forwards or backwards.
func (c *Client) MoveBookmark(ctx context.Context, name string, to ops.Revision) (ops.Result, error) {
	return c.mutate(ctx, to.Ref(), "bookmark", "set", name, "-r", to.Ref(), "--allow-backwards")
}

// Abandon drops rev; its descendants are rebased onto its parents.
func (c *Client) Abandon(ctx context.Context, rev ops.Revision) (ops.Result, error) {
	return c.mutate(ctx, "", "abandon", rev.Ref())
}

// Describe replaces the description of rev.
func (c *Client) Describe(ctx context.Context, rev ops.Revision, message string) (ops.Result, error) {
	return c.mutate(ctx, rev.Ref(), "describe", rev.Ref(), "-m", message)
}

// mutate runs args and reports the rewritten head and any conflicts the
// command introduced. head names the change to look up afterwards. Only one
// mutation runs at a time.
func (c *Client) mutate(ctx context.Context, head string, args ...string) (ops.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before, err := c.conflicts(ctx)
	if err != nil {
		return ops.Result{}, err
	}
	if _, err := c.run(ctx, args...); err != nil {
		return ops.Result{}, err
	}

	var res ops.Result
	if head != "" {
		ids, err := c.lines(ctx, "log", "--no-graph", "-r", fmt.Sprintf("latest(%s)", head), "-T", `commit_id ++ "\n"`)
		if err != nil {
			return ops.Result{}, err
		}
		if len(ids) > 0 {
			res.NewHead = graph.CommitID(ids[0])
		}
	}

	after, err := c.conflicts(ctx)
	if err != nil {
		return ops.Result{}, err
	}
	known := make(map[string]bool, len(before))
	for _, id := range before {
		known[id] = true
	}
	for _, id := range after {
		if !known[id] {
			res.Conflicts = append(res.Conflicts, id)
		}
	}
	return res, nil
}

func (c *Client) conflicts(ctx context.Context) ([]string, error) {
	return c.lines(ctx, "log", "--no-graph", "-r", "conflicts() & mutable()", "-T", `change_id ++ "\n"`)
}
