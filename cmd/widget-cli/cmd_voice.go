package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/janhq/jan-widget/internal/domain/voice"
	"github.com/janhq/jan-widget/internal/infrastructure/livekit"
	"github.com/janhq/jan-widget/internal/utils/platformerrors"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Get a real-time voice connection URL",
	Long: `Request a voice session from a running widget-api and print its URL.

With --local the URL is signed here using LIVEKIT_API_KEY and
LIVEKIT_API_SECRET instead.`,
	RunE: runVoice,
}

func init() {
	voiceCmd.Flags().String("identity", "", "Participant identity (random when empty)")
	voiceCmd.Flags().String("server", "", "widget-api base URL (overrides WIDGET_API_URL)")
	voiceCmd.Flags().Bool("local", false, "Sign the URL locally instead of asking the server")
	voiceCmd.Flags().Bool("json", false, "Print the whole grant as JSON")
}

func runVoice(cmd *cobra.Command, _ []string) error {
	cfg, cliCfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cliCfg)

	identity, _ := cmd.Flags().GetString("identity")
	server, _ := cmd.Flags().GetString("server")
	local, _ := cmd.Flags().GetBool("local")
	asJSON, _ := cmd.Flags().GetBool("json")
	if server == "" {
		server = cliCfg.ServerURL
	}

	var grant *voice.ConnectionGrant
	if local {
		if !cfg.VoiceSessionsEnabled() {
			return fmt.Errorf("--local needs LIVEKIT_API_KEY and LIVEKIT_API_SECRET")
		}
		issuer := voice.NewConnectionIssuer(livekit.NewTokenGeneratorFromConfig(cfg), cfg.LiveKitWsURL, cfg.LiveKitTokenTTL, log)
		grant, err = issuer.Issue(cmd.Context(), identity)
	} else {
		grant, err = requestVoiceSession(cmd.Context(), resty.New(), server, cliCfg.AccessToken, identity)
	}
	if err != nil {
		return err
	}

	return printGrant(cmd.OutOrStdout(), grant, asJSON)
}

// requestVoiceSession calls POST /v1/voice/sessions on a widget-api.
func requestVoiceSession(ctx context.Context, client *resty.Client, serverURL, token, identity string) (*voice.ConnectionGrant, error) {
	req := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"identity": identity}).
		SetResult(&voice.ConnectionGrant{}).
		SetError(&platformerrors.HTTPErrorResponse{})
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Post(strings.TrimRight(serverURL, "/") + "/v1/voice/sessions")
	if err != nil {
		return nil, fmt.Errorf("request voice session: %w", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*platformerrors.HTTPErrorResponse); ok && apiErr.Error != nil {
			return nil, fmt.Errorf("widget-api returned %d: %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return nil, fmt.Errorf("widget-api returned %d", resp.StatusCode())
	}
	return resp.Result().(*voice.ConnectionGrant), nil
}

func printGrant(out io.Writer, grant *voice.ConnectionGrant, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(grant)
	}
	fmt.Fprintf(out, "room:     %s\nidentity: %s\nexpires:  %s\n%s\n",
		grant.Room, grant.Identity, time.Unix(grant.ExpiresAt, 0).UTC().Format(time.RFC3339), grant.URL)
	return nil
}
