package cli

import (
	"bufio"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatOpts     searchFlags
	chatNoStream bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the agent",
	Long: `Sends one message to the agent, or starts an interactive session when
no message is given. The agent searches documents, queries registered
databases, exports results to Excel and plots charts as needed.
Answers stream token by token unless --no-stream is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatOpts.register(chatCmd, "all")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the full reply")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return chatTurn(cmd, args[0])
	}

	if chatOpts.session == "" {
		chatOpts.session = uuid.NewString()
	}
	cmd.Println(heading("talkdb chat") + dim(" session "+chatOpts.session))
	cmd.Println(dim("Type your message and press Enter. Type 'exit' to quit."))

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print(good("You: "))
		if !sc.Scan() {
			cmd.Println()
			return sc.Err()
		}
		msg := strings.TrimSpace(sc.Text())
		switch msg {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := chatTurn(cmd, msg); err != nil {
			cmd.PrintErrln(bad("error: ") + err.Error())
		}
	}
}

func chatTurn(cmd *cobra.Command, msg string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	req := chatOpts.request(msg)
	if chatNoStream || jsonOut {
		reply, err := client.Chat(ctx, req)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, reply)
		}
		cmd.Println(heading("talkdb: ") + reply.Answer)
		printArtifacts(cmd, reply.Artifacts)
		printCitations(cmd, reply.Citations)
		return nil
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	cmd.Print(heading("talkdb: "))
	for tok, err := range client.ChatStream(ctx, req) {
		if err != nil {
			cmd.Println()
			return err
		}
		cmd.Print(tok)
	}
	cmd.Println()
	return nil
}
