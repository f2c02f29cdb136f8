// Command deskctl is a terminal client for the service desk API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
)

type options struct {
	server   string
	identity string
	password string
	timeout  time.Duration
	wait     time.Duration
	poll     time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("deskctl", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.server, "server", "s", envOr("DESKCTL_SERVER", "http://127.0.0.1:8080"), "service desk base URL")
	flagSet.StringVarP(&opts.identity, "identity", "u", envOr("DESKCTL_IDENTITY", domain.BusinessIdentity), "account to sign in as")
	flagSet.StringVarP(&opts.password, "password", "p", os.Getenv("DESKCTL_PASSWORD"), "account password when the server requires one")
	flagSet.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per request timeout")
	flagSet.DurationVar(&opts.wait, "wait", 20*time.Second, "how long chat waits for the assistant to finish")
	flagSet.DurationVar(&opts.poll, "poll", 500*time.Millisecond, "chat polling interval")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return errors.New("missing command")
	}

	ctx := context.Background()
	c := newClient(opts.server, opts.timeout)
	if _, err := c.login(ctx, opts.identity, opts.password); err != nil {
		return fmt.Errorf("login as %s: %w", opts.identity, err)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "chat":
		if len(rest) == 0 {
			return errors.New("chat needs a message")
		}
		return runChat(ctx, c, out, strings.Join(rest, " "), opts)
	case "messages":
		return printConversation(ctx, c, out)
	case "end":
		return c.do(ctx, "DELETE", "/chat/session", nil, nil)
	case "tickets":
		var items []dto.TicketSummary
		path := "/tickets"
		if isSupport(opts.identity) {
			path = "/support/tickets"
		}
		if err := c.do(ctx, "GET", path, nil, &items); err != nil {
			return err
		}
		printTickets(out, items)
		return nil
	case "ticket":
		if len(rest) != 1 {
			return errors.New("ticket needs an id")
		}
		var detail dto.TicketDetailResponse
		if err := c.do(ctx, "GET", "/tickets/"+rest[0], nil, &detail); err != nil {
			return err
		}
		printTicket(out, detail)
		return nil
	case "incidents":
		var items []dto.IncidentResponse
		if err := c.do(ctx, "GET", "/support/incidents", nil, &items); err != nil {
			return err
		}
		printIncidents(out, items)
		return nil
	case "notifications":
		var list dto.NotificationListResponse
		if err := c.do(ctx, "GET", "/notifications", nil, &list); err != nil {
			return err
		}
		printNotifications(out, list)
		return nil
	case "ack":
		if len(rest) != 1 {
			return errors.New("ack needs a notification id")
		}
		return c.do(ctx, "POST", "/notifications/"+rest[0]+"/ack", nil, nil)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// runChat sends text and prints assistant replies until the session
// stops thinking or the wait elapses.
func runChat(ctx context.Context, c *client, out io.Writer, text string, opts options) error {
	var before dto.ChatConversationResponse
	if err := c.do(ctx, "GET", "/chat/messages", nil, &before); err != nil {
		return err
	}
	var sent dto.ChatSendResponse
	if err := c.do(ctx, "POST", "/chat/messages", dto.ChatMessageRequest{Text: text}, &sent); err != nil {
		return err
	}
	fmt.Fprintf(out, "intent: %s", sent.Intent)
	if sent.Sensitive {
		fmt.Fprint(out, " (sensitive)")
	}
	fmt.Fprintln(out)

	seen := len(before.Messages) + 1
	deadline := time.Now().Add(opts.wait)
	for {
		time.Sleep(opts.poll)
		var conv dto.ChatConversationResponse
		if err := c.do(ctx, "GET", "/chat/messages", nil, &conv); err != nil {
			return err
		}
		for _, msg := range conv.Messages[min(seen, len(conv.Messages)):] {
			printMessage(out, msg)
		}
		seen = max(seen, len(conv.Messages))
		if !conv.Thinking {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("assistant still thinking, check again with: deskctl messages")
		}
	}
}

func printConversation(ctx context.Context, c *client, out io.Writer) error {
	var conv dto.ChatConversationResponse
	if err := c.do(ctx, "GET", "/chat/messages", nil, &conv); err != nil {
		return err
	}
	for _, msg := range conv.Messages {
		printMessage(out, msg)
	}
	if conv.Thinking {
		fmt.Fprintln(out, "... assistant is thinking")
	}
	return nil
}

func printMessage(out io.Writer, msg domain.ChatMessage) {
	fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), msg.Role, msg.Content)
	switch {
	case msg.IncidentID != "":
		fmt.Fprintf(out, "    incident %s\n", msg.IncidentID)
	case msg.TicketID != "":
		fmt.Fprintf(out, "    ticket %s\n", msg.TicketID)
	}
	if msg.ReportLink != "" {
		fmt.Fprintf(out, "    report %s\n", msg.ReportLink)
	}
	for _, entry := range msg.Timeline {
		fmt.Fprintf(out, "    %s  %-10s %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04"), entry.Status, entry.Description)
	}
}

func printTickets(out io.Writer, items []dto.TicketSummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCATEGORY\tUPDATED\tTITLE")
	for _, t := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Category, t.Updated, t.Title)
	}
	_ = tw.Flush()
}

func printTicket(out io.Writer, t dto.TicketDetailResponse) {
	fmt.Fprintf(out, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "status %s  priority %s  category %s  assignee %s\n", t.Status, t.Priority, t.Category, t.Assignee)
	if t.IncidentID != "" {
		fmt.Fprintf(out, "incident %s\n", t.IncidentID)
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\n%s\n", t.Description)
	}
	for _, cm := range t.Comments {
		fmt.Fprintf(out, "\n%s (%s):\n  %s\n", cm.Author, cm.Timestamp.Local().Format("2006-01-02 15:04"), cm.Content)
	}
}

func printIncidents(out io.Writer, items []dto.IncidentResponse) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tASSIGNEE\tTITLE")
	for _, inc := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", inc.ID, inc.Status, inc.Priority, inc.Assignee, inc.Title)
	}
	_ = tw.Flush()
}

func printNotifications(out io.Writer, list dto.NotificationListResponse) {
	fmt.Fprintf(out, "%d unread\n", list.UnreadCount)
	for _, n := range list.Items {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s  %s  %s\n", mark, n.ID, n.Title, n.Message)
	}
}

func isSupport(identity string) bool {
	acc, ok := domain.LookupAccount(identity)
	return ok && acc.Role == domain.RoleSupport
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `deskctl talks to a running service desk.

Usage:
  deskctl [flags] <command> [args]

Commands:
  chat <text>        send a chat message and follow the assistant's replies
  messages           print the current conversation
  end                end the chat session and cancel pending replies
  tickets            list tickets (all tickets for support accounts)
  ticket <id>        show one ticket
  incidents          list incidents (support accounts)
  notifications      list notifications
  ack <id>           mark a notification read

Flags:
%s`, flagSet.FlagUsages())
}
