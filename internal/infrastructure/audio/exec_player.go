package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/voice"
)

// DefaultCommand plays a file and exits without opening a window.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel quiet"

// ExecPlayer plays clips with an external command. The clip path is appended
// as the last argument and the process is killed when ctx is cancelled.
type ExecPlayer struct {
	argv []string
	log  zerolog.Logger
}

// NewExecPlayer parses command into argv. An empty command uses DefaultCommand.
func NewExecPlayer(command string, log zerolog.Logger) *ExecPlayer {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	return &ExecPlayer{
		argv: strings.Fields(command),
		log:  log.With().Str("component", "exec-player").Logger(),
	}
}

func (p *ExecPlayer) Play(ctx context.Context, clip *voice.Clip) error {
	f, err := os.CreateTemp("", "jan-widget-*"+extension(clip.MIMEType))
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(clip.Data); err != nil {
		f.Close()
		return fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close clip file: %w", err)
	}

	args := append(append([]string(nil), p.argv[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.log.Debug().Int("exit_code", exitErr.ExitCode()).Msg("player exited with error")
		}
		return fmt.Errorf("run %s: %w", p.argv[0], err)
	}
	return nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	default:
		return ".audio"
	}
}

var _ voice.Player = (*ExecPlayer)(nil)
