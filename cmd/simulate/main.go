// Command simulate drives the conversation engine from a terminal or a script
// file, with in-memory stores and replies printed instead of delivered.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/dealer-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dealer-ai-platform/internal/config"
	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/internal/crm"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/llm"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// agentPrefix marks a script line as a message typed by a human on the
// business phone rather than by the customer.
const agentPrefix = "/agente "

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "simulate",
		Short:        "Talk to the sales assistant locally",
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.AddCommand(newChatCmd(), newPingCmd())
	return root
}

func newChatCmd() *cobra.Command {
	var (
		phone    string
		script   string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run customer turns read from stdin (or --script), one message per line",
		Long: "Each line is one customer message. Lines starting with \"" + strings.TrimSpace(agentPrefix) +
			"\" are sent as a human agent writing from the business phone.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appconfig.Load()
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), logLevel, "text")

			client, err := buildLLM(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			input := cmd.InOrStdin()
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return err
				}
				defer f.Close()
				input = f
			}
			sim := newSimulator(cfg, client, cmd.OutOrStdout(), logger)
			if err := sim.run(cmd.Context(), phone, input); err != nil {
				return err
			}
			sim.printBoard()
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "+5215512345678", "customer phone number")
	cmd.Flags().StringVar(&script, "script", "", "file with one message per line")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "engine log level")
	return cmd
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping [prompt]",
		Short: "Send one prompt through the provider failover chain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.Load()
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), "info", "text")
			client, err := buildLLM(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			prompt := "Hola, ¿qué camionetas tienen disponibles?"
			if len(args) == 1 {
				prompt = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			start := time.Now()
			resp, err := client.Complete(ctx, llm.Request{
				System:      []string{"Eres un asesor de ventas de una agencia de vehículos. Responde breve."},
				Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
				MaxTokens:   200,
				Temperature: float32(cfg.LLMTemperature),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s, %s] %s\n", resp.Provider, time.Since(start).Round(time.Millisecond), resp.Text)
			fmt.Fprintf(cmd.OutOrStdout(), "tokens: in=%d out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
			return nil
		},
	}
}

func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (llm.Client, error) {
	var converse llm.ConverseAPI
	if cfg.BedrockModelID != "" {
		awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		converse = bedrockruntime.NewFromConfig(awsCfg)
	}
	stack, err := bootstrap.BuildLLMClient(ctx, cfg, converse, nil, logger)
	if err != nil {
		return nil, err
	}
	return stack.Client, nil
}

// simulator runs turns synchronously; the dispatcher is unnecessary because
// there is exactly one conversation.
type simulator struct {
	engine *conversation.Engine
	board  *crm.MemoryClient
	out    io.Writer
	now    func() time.Time
}

func newSimulator(cfg *appconfig.Config, client llm.Client, out io.Writer, logger *logging.Logger) *simulator {
	board := crm.NewMemoryClient()
	messenger := conversation.ReplyMessengerFunc(func(_ context.Context, reply conversation.OutboundReply) ([]string, error) {
		fmt.Fprintf(out, "asesor> %s\n", reply.Body)
		for _, url := range reply.MediaURLs {
			fmt.Fprintf(out, "        [media] %s\n", url)
		}
		n := max(1, len(reply.MediaURLs))
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			ids = append(ids, "sim-"+uuid.NewString())
		}
		return ids, nil
	})
	engine := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		Gate:      bootstrap.BuildGate(cfg),
		Sessions:  session.NewMemoryStore(),
		Inventory: bootstrap.BuildCatalog(cfg, nil, logger),
		LLM:       client,
		Messenger: messenger,
		CRM:       board,
		Leads:     leads.NewInMemoryRepository(),
	}, logger)
	return &simulator{engine: engine, board: board, out: out, now: time.Now}
}

func (s *simulator) run(ctx context.Context, phone string, input io.Reader) error {
	conversationID := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if text, ok := strings.CutPrefix(line, agentPrefix); ok {
			origin, err := s.engine.HandleEcho(ctx, conversation.EchoMessage{
				MessageID:      "agent-" + uuid.NewString(),
				ConversationID: conversationID,
				Text:           text,
				SentAt:         s.now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "agente> %s (%s)\n", text, origin)
			continue
		}

		fmt.Fprintf(s.out, "cliente> %s\n", line)
		res, err := s.engine.HandleInbound(ctx, conversation.InboundMessage{
			MessageID:      "sim-in-" + uuid.NewString(),
			ConversationID: conversationID,
			From:           phone,
			Text:           line,
			Provider:       "simulator",
			ReceivedAt:     s.now(),
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if res.Outcome != conversation.OutcomeReplied {
			fmt.Fprintf(s.out, "        (%s)\n", res.Outcome)
		}
	}
	return scanner.Err()
}

func (s *simulator) printBoard() {
	items := s.board.Items()
	if len(items) == 0 {
		fmt.Fprintln(s.out, "\ncrm: sin registros")
		return
	}
	fmt.Fprintln(s.out, "\ncrm:")
	for _, item := range items {
		fmt.Fprintf(s.out, "  %s %q %v\n", item.ID, item.Name, item.Fields)
		for _, note := range item.Notes {
			fmt.Fprintf(s.out, "    nota: %s\n", strings.ReplaceAll(note, "\n", " | "))
		}
	}
}
