// todo - command line client for the AI todo agent
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muhammadzainrehmani/ai-todo-agent/clients/go/todoclient"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var baseURL string

	rootCmd := &cobra.Command{
		Use:          "todo",
		Short:        "Chat with the AI todo agent and manage your list",
		SilenceUsage: true,
	}

	defaultURL := os.Getenv("TODO_AGENT_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", defaultURL, "Server base URL")

	client := func() *todoclient.Client { return todoclient.NewClient(baseURL) }

	rootCmd.AddCommand(
		newRegisterCmd(client),
		newLoginCmd(client),
		newTodosCmd(client),
		newUploadCmd(client),
		newChatCmd(client),
		newHealthCmd(client),
	)
	return rootCmd
}

func newRegisterCmd(client func() *todoclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := client().Register(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %d)\n", user.Email, user.ID)
			return nil
		},
	}
}

func newLoginCmd(client func() *todoclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Log in and cache the access token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			if err := c.Login(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", c.Email)
			return nil
		},
	}
}

func newTodosCmd(client func() *todoclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "todos",
		Short: "List your tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := client().Todos(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(out, "No tasks.")
				return nil
			}
			for _, t := range tasks {
				mark := " "
				if t.IsCompleted {
					mark = "x"
				}
				_, _ = fmt.Fprintf(out, "[%s] %d  %s\n", mark, t.ID, t.Title)
			}
			return nil
		},
	}
}

func newUploadCmd(client func() *todoclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a text document for the agent to search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := client().Upload(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("upload rejected: %s", resp.Error)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newChatCmd(client func() *todoclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent (one message per line, Ctrl-D to quit)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			chat, err := client().Chat(cmd.Context())
			if err != nil {
				return err
			}
			defer chat.Close()

			return chatLoop(cmd, chat, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func chatLoop(cmd *cobra.Command, chat *todoclient.Chat, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := chat.Send(cmd.Context(), line, func(token string) {
			_, _ = fmt.Fprint(out, token)
		})
		_, _ = fmt.Fprintln(out)
		var agentErr *todoclient.AgentError
		if errors.As(err, &agentErr) {
			_, _ = fmt.Fprintln(out, agentErr.Error())
			continue
		}
		if err != nil {
			return err
		}
	}
}

func newHealthCmd(client func() *todoclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := client().Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
