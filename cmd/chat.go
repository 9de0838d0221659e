package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunardrift/lunardrift/internal/config"
	"github.com/lunardrift/lunardrift/internal/container"
)

var (
	chatMessage string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "cli:direct", "Session ID")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	// Subprocess groups and background jobs must die on every exit path.
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if chatMessage != "" {
		return runSingleMessage(ctx, c, chatMessage)
	}
	return runInteractive(ctx, c)
}

// runSingleMessage sends one message and prints the reply.
func runSingleMessage(ctx context.Context, c *container.Container, message string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
	printResponse(c.Loop().Process(ctx, chatSession, message))
	return nil
}

// runInteractive reads lines from stdin and answers each one in turn.
func runInteractive(ctx context.Context, c *container.Container) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")

		lineCh := make(chan string, 1)
		go func() {
			if scanner.Scan() {
				lineCh <- scanner.Text()
			} else {
				close(lineCh)
			}
		}()

		var line string
		var open bool
		select {
		case line, open = <-lineCh:
			if !open {
				fmt.Println("\nGoodbye!")
				return nil
			}
		case <-ctx.Done():
			fmt.Println("\nGoodbye!")
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		printResponse(c.Loop().Process(ctx, chatSession, line))

		if ctx.Err() != nil {
			fmt.Println("\nGoodbye!")
			return nil
		}
	}
}

func printResponse(text string) {
	fmt.Printf("\n%s lunardrift\n%s\n\n", logo, text)
}
