package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/domain/stream"
	"github.com/janhq/jan-widget/internal/domain/voice"
	"github.com/janhq/jan-widget/internal/infrastructure/audio"
	"github.com/janhq/jan-widget/internal/infrastructure/llmprovider"
	"github.com/janhq/jan-widget/internal/infrastructure/redact"
	"github.com/janhq/jan-widget/internal/infrastructure/tts"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start a conversation with the configured chat completions endpoint.

Replies are printed as they stream. Commands:
  /reset        clear the conversation
  /voice on|off toggle spoken replies
  /quit         exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Bool("speak", false, "Read replies aloud (requires TTS_API_URL)")
	chatCmd.Flags().String("player", "", "Audio player command (overrides AUDIO_PLAYER_COMMAND)")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, cliCfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cliCfg)

	speak, _ := cmd.Flags().GetBool("speak")
	playerCommand, _ := cmd.Flags().GetString("player")
	if playerCommand == "" {
		playerCommand = cliCfg.Player
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	opts := []conversation.SessionOption{
		conversation.WithPublisher(newTerminalPrinter(out)),
		conversation.WithVoiceOutput(speak),
	}

	var hook *voice.Hook
	if strings.TrimSpace(cfg.TTSAPIURL) != "" {
		hook = voice.NewHook(
			tts.NewClientFromConfig(cfg, nil, log),
			audio.NewExecPlayer(playerCommand, log),
			voice.HookConfig{Voice: cfg.TTSVoice, SynthesisTimeout: cfg.TTSTimeout},
			log,
		)
		opts = append(opts, conversation.WithSpeaker(hook))
	} else if speak {
		return fmt.Errorf("--speak needs TTS_API_URL")
	}

	sess := conversation.NewSession(conversation.NewConversationID(), opts...)
	runner := conversation.NewRunner(
		llmprovider.NewClientFromConfig(cfg, log),
		stream.Options{MaxMalformedLines: cfg.StreamMaxMalformedLines},
		nil,
		redact.New(redact.ParseLevel(cfg.LogPIILevel), cfg.ServiceName, redactMaxLen),
		log,
	)

	err = chatLoop(ctx, cmd.InOrStdin(), out, sess, runner, hook != nil)
	if hook != nil {
		hook.Stop()
		hook.Wait()
	}
	return err
}

const redactMaxLen = 200

// chatLoop reads one line per turn until EOF, /quit or ctx is cancelled.
// Each turn runs to completion before the next line is read.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, sess *conversation.Session, runner *conversation.Runner, voiceAvailable bool) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit":
			return nil
		case line == "/reset":
			if err := sess.Reset(); err != nil {
				fmt.Fprintf(out, "cannot reset: %v\n", err)
			} else {
				fmt.Fprintln(out, "(conversation cleared)")
			}
		case strings.HasPrefix(line, "/voice"):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/voice"))
			switch {
			case !voiceAvailable:
				fmt.Fprintln(out, "(voice output needs TTS_API_URL)")
			case arg == "on" || arg == "off":
				sess.SetVoiceOutput(arg == "on")
				fmt.Fprintf(out, "(voice output %s)\n", arg)
			default:
				fmt.Fprintln(out, "usage: /voice on|off")
			}
		default:
			if turn, ok := sess.Submit(line); ok {
				runner.Run(ctx, sess, turn)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

// terminalPrinter writes the growing assistant reply as it streams.
type terminalPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
}

func newTerminalPrinter(out io.Writer) *terminalPrinter {
	return &terminalPrinter{out: out}
}

func (p *terminalPrinter) Publish(_ string, event conversation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case conversation.EventTurnStarted:
		p.printed = 0
	case conversation.EventDelta:
		payload, ok := event.Data.(conversation.DeltaPayload)
		if !ok || len(payload.Content) <= p.printed {
			return
		}
		fmt.Fprint(p.out, payload.Content[p.printed:])
		p.printed = len(payload.Content)
	case conversation.EventTurnCompleted:
		fmt.Fprintln(p.out)
	case conversation.EventTurnFailed:
		if p.printed > 0 {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.out, conversation.ApologyMessage)
	}
}
