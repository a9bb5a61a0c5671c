// ABOUTME: Terminal client for the minecraft-ai chat API
// ABOUTME: Creates and lists conversations, chats in the active one, and prints transcripts

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
)

var version = "dev"

func usage() {
	fmt.Println("Usage: mcai <command> [--config PATH] [flags] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  new [--topic T] [--player NAME] [--player-uuid UUID]   Start a conversation and make it active")
	fmt.Println("  list [--player NAME]                                  List your conversations")
	fmt.Println("  use ID                                                Make an existing conversation active")
	fmt.Println("  say MESSAGE                                           Send a message in the active conversation")
	fmt.Println("  history [--markdown]                                  Print the active conversation")
	fmt.Println("  ask MESSAGE                                           Ask a one-off question")
	fmt.Println("  forget                                                Clear the active conversation")
	fmt.Println("  version                                               Print the version")
}

// app holds what every command needs.
type app struct {
	server string
	api    *APIClient
	state  *State
	out    io.Writer
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "version":
		fmt.Printf("mcai %s\n", version)
		return
	case "help", "-h", "--help":
		usage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, cmd, args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses flags for cmd, loads config and state, and executes it.
func run(ctx context.Context, out io.Writer, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFlag := fs.String("config", "", "path to client config file")
	topic := fs.String("topic", "", "conversation topic")
	player := fs.String("player", "", "player username")
	playerUUID := fs.String("player-uuid", "", "player UUID")
	markdown := fs.Bool("markdown", false, "print the Markdown transcript")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := LoadConfig(configPath(*configFlag))
	if err != nil {
		return err
	}

	state, err := OpenState(cfg.Client.StatePath)
	if err != nil {
		return err
	}
	defer state.Close()

	a := &app{
		server: cfg.Server.URL,
		api:    NewAPIClient(cfg.Server.URL, cfg.Server.APIKey, cfg.Client.RequestTimeout()),
		state:  state,
		out:    out,
	}

	rest := strings.TrimSpace(strings.Join(fs.Args(), " "))
	switch cmd {
	case "new":
		return a.newConversation(ctx, NewConversation{Topic: *topic, PlayerUsername: *player, PlayerUUID: *playerUUID})
	case "list":
		return a.list(ctx, *player)
	case "use":
		return a.use(ctx, rest)
	case "say":
		return a.say(ctx, rest)
	case "history":
		return a.history(ctx, *markdown)
	case "ask":
		return a.ask(ctx, rest)
	case "forget":
		return a.state.ClearActive(a.server)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *app) newConversation(ctx context.Context, req NewConversation) error {
	conv, err := a.api.CreateConversation(ctx, req)
	if err != nil {
		return err
	}
	if err := a.state.SetActive(a.server, activeConversation{ID: conv.ID, Topic: conv.Topic}); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprint(a.out, "▶ ")
	fmt.Fprintf(a.out, "%s  %s\n", conv.ID, conv.Topic)
	return nil
}

func (a *app) list(ctx context.Context, player string) error {
	convs, err := a.api.ListConversations(ctx, player)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(a.out, "no conversations")
		return nil
	}

	active, err := a.state.Active(a.server)
	if err != nil && !errors.Is(err, errNoActive) {
		return err
	}
	gray := color.New(color.FgHiBlack)
	for _, c := range convs {
		marker := " "
		if c.ID == active.ID {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s", marker, c.ID, c.Topic)
		if c.PlayerUsername != "" {
			gray.Fprintf(a.out, "  (%s)", c.PlayerUsername)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

// use selects id after confirming it belongs to this key.
func (a *app) use(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: mcai use ID")
	}
	convs, err := a.api.ListConversations(ctx, "")
	if err != nil {
		return err
	}
	for _, c := range convs {
		if c.ID == id {
			if err := a.state.SetActive(a.server, activeConversation{ID: c.ID, Topic: c.Topic}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "active: %s  %s\n", c.ID, c.Topic)
			return nil
		}
	}
	return fmt.Errorf("conversation %s not found", id)
}

func (a *app) say(ctx context.Context, message string) error {
	if message == "" {
		return errors.New("usage: mcai say MESSAGE")
	}
	active, err := a.state.Active(a.server)
	if err != nil {
		return err
	}
	reply, err := a.api.SendMessage(ctx, active.ID, message)
	if err != nil {
		return err
	}
	printReply(a.out, reply)
	return nil
}

func (a *app) history(ctx context.Context, markdown bool) error {
	active, err := a.state.Active(a.server)
	if err != nil {
		return err
	}

	if markdown {
		transcript, err := a.api.Transcript(ctx, active.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(a.out, transcript)
		return nil
	}

	msgs, err := a.api.History(ctx, active.ID)
	if err != nil {
		return err
	}
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	for _, m := range msgs {
		if m.Role == "assistant" {
			green.Fprint(a.out, "assistant> ")
		} else {
			cyan.Fprint(a.out, "player> ")
		}
		fmt.Fprintln(a.out, m.Body)
	}
	return nil
}

func (a *app) ask(ctx context.Context, message string) error {
	if message == "" {
		return errors.New("usage: mcai ask MESSAGE")
	}
	reply, err := a.api.Ask(ctx, message)
	if err != nil {
		return err
	}
	printReply(a.out, reply)
	return nil
}

func printReply(out io.Writer, reply string) {
	color.New(color.FgGreen).Fprint(out, "assistant> ")
	fmt.Fprintln(out, reply)
}
