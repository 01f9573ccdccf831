package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"yaprooms/internal/chat"
	"yaprooms/internal/gossip"
)

// ErrQuit is returned by Handle for /quit.
var ErrQuit = errors.New("quit")

// ChatService is what the terminal UI drives.
type ChatService interface {
	CreateOrJoin(ctx context.Context, username, ticket string) (chat.Joined, error)
	Send(ctx context.Context, text string) error
	SelectTopic(key string) (*chat.Session, error)
	Active() (*chat.Session, error)
	Topics() []chat.TopicInfo
}

// Result is what a handled input line asks the UI to show.
type Result struct {
	Lines  []string
	Active string
}

// Commands interprets input lines. Plain text is sent to the active room,
// lines starting with "/" are commands.
type Commands struct {
	svc ChatService

	mu   sync.Mutex
	name string
}

func NewCommands(svc ChatService, name string) *Commands {
	return &Commands{svc: svc, name: name}
}

// Name is the display name announced when creating or joining rooms.
func (c *Commands) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

const helpText = `commands:
  /new                create a room and print its ticket
  /join <ticket>      join a room
  /switch <room>      make another joined room active
  /topics             list joined rooms
  /peers              show neighbors and known names in the active room
  /ticket             show the active room's ticket
  /name <name>        announce a different name in rooms joined from now on
  /quit               leave`

// Handle runs one input line.
func (c *Commands) Handle(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return Result{}, nil
	case strings.HasPrefix(text, "/"):
		return c.handleCommand(ctx, text)
	default:
		return Result{}, c.svc.Send(ctx, text)
	}
}

func (c *Commands) handleCommand(ctx context.Context, cmd string) (Result, error) {
	parts := strings.Fields(cmd)
	switch parts[0] {
	case "/quit", "/exit", "/q":
		return Result{Lines: []string{"goodbye"}}, ErrQuit
	case "/help", "/?":
		return Result{Lines: strings.Split(helpText, "\n")}, nil
	case "/new":
		return c.Start(ctx, "")
	case "/join":
		if len(parts) != 2 {
			return usage("/join <ticket>"), nil
		}
		return c.Start(ctx, parts[1])
	case "/switch":
		if len(parts) != 2 {
			return usage("/switch <room>"), nil
		}
		sess, err := c.svc.SelectTopic(parts[1])
		if err != nil {
			return Result{}, err
		}
		return Result{Lines: []string{"now chatting in " + sess.Key()}, Active: sess.Key()}, nil
	case "/topics":
		return Result{Lines: c.topicLines()}, nil
	case "/peers":
		sess, err := c.svc.Active()
		if err != nil {
			return Result{}, err
		}
		return Result{Lines: peerLines(sess)}, nil
	case "/ticket":
		sess, err := c.svc.Active()
		if err != nil {
			return Result{}, err
		}
		return Result{Lines: []string{"ticket for " + sess.Key() + ":", sess.Ticket()}}, nil
	case "/name":
		if len(parts) < 2 {
			return usage("/name <name>"), nil
		}
		name := strings.Join(parts[1:], " ")
		c.mu.Lock()
		c.name = name
		c.mu.Unlock()
		return Result{Lines: []string{"rooms you join from now on will know you as " + name}}, nil
	default:
		return Result{Lines: []string{fmt.Sprintf("unknown command %q, try /help", parts[0])}}, nil
	}
}

// Start creates a room when ticket is empty and joins it otherwise.
func (c *Commands) Start(ctx context.Context, ticket string) (Result, error) {
	joined, err := c.svc.CreateOrJoin(ctx, c.Name(), ticket)
	if err != nil {
		return Result{}, err
	}
	if joined.Created {
		return Result{
			Lines:  []string{"created " + joined.Key, "share this ticket to invite others:", joined.Ticket},
			Active: joined.Key,
		}, nil
	}
	return Result{Lines: []string{"joined " + joined.Key}, Active: joined.Key}, nil
}

func (c *Commands) topicLines() []string {
	topics := c.svc.Topics()
	if len(topics) == 0 {
		return []string{"no rooms yet, use /new or /join <ticket>"}
	}
	lines := make([]string, 0, len(topics))
	for _, t := range topics {
		marker := "  "
		if t.Active {
			marker = "* "
		}
		lines = append(lines, fmt.Sprintf("%s%s (%d neighbors)", marker, t.Key, t.Neighbors))
	}
	return lines
}

func peerLines(sess *chat.Session) []string {
	neighbors := sess.Neighbors()
	labels := make([]string, 0, len(neighbors))
	for _, id := range neighbors {
		label := gossip.ShortID(id)
		if name, ok := sess.Name(id); ok {
			label = fmt.Sprintf("%s (%s)", label, name)
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	known := sess.Names()
	names := make([]string, 0, len(known))
	for _, name := range known {
		names = append(names, name)
	}
	sort.Strings(names)

	return []string{
		fmt.Sprintf("neighbors (%d): %s", len(labels), summarizeList(labels)),
		fmt.Sprintf("known names (%d): %s", len(names), summarizeList(names)),
	}
}

func usage(s string) Result {
	return Result{Lines: []string{"usage: " + s}}
}

func summarizeList(items []string) string {
	switch len(items) {
	case 0:
		return "none"
	case 1:
		return items[0]
	case 2:
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%s, %s (+%d more)", items[0], items[1], len(items)-2)
	}
}
