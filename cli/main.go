// Package main provides a CLI that drives the container bridge socket the way
// a host page would, for debugging and scripted replays.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	addr     string
	tabID    string
	location string
	wait     time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "container-cli",
		Short: "Drive the container bridge socket from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "ws://localhost:8092/ws", "bridge WebSocket address")
	root.PersistentFlags().StringVar(&opts.tabID, "tab", "", "tab id sent with hello (empty lets the server pick)")
	root.PersistentFlags().StringVar(&opts.location, "location", "http://localhost:8092/iframe-container.html", "host page address sent with hello")

	replay := &cobra.Command{
		Use:   "replay [file]",
		Short: "Send events from a file (or stdin), one per line, and print the commands received",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runReplay(opts, in, cmd.OutOrStdout())
		},
	}
	replay.Flags().DurationVar(&opts.wait, "wait", time.Second, "how long to keep printing commands after the last event")
	root.AddCommand(replay)

	return root
}

func connect(opts *options, out io.Writer) (*Client, error) {
	fmt.Fprintf(out, "Connecting to %s...\n", opts.addr)
	client, err := NewClient(opts.addr)
	if err != nil {
		return nil, err
	}
	if err := client.SendHello(opts.tabID, opts.location); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func runReplay(opts *options, in io.Reader, out io.Writer) error {
	client, err := connect(opts, out)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		if err := client.ReadCommands(out); err != nil {
			log.Printf("Read error: %v", err)
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		env, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := client.Send(env); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	time.Sleep(opts.wait)
	return nil
}

func runInteractive(opts *options, in io.Reader, out io.Writer) error {
	client, err := connect(opts, out)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintln(out, "Connected. Type an event and press Enter (load, msg, pop, hide, show, unload, toggle, url).")
	fmt.Fprintln(out, "Commands: /quit to exit")

	go func() {
		if err := client.ReadCommands(out); err != nil {
			log.Printf("Read error: %v", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-interrupt:
			fmt.Fprintln(out, "\nInterrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if input == "/quit" {
				fmt.Fprintln(out, "Bye!")
				return nil
			}
			env, err := parseLine(input)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if err := client.Send(env); err != nil {
				return err
			}
		}
	}
}
