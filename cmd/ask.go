package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"voice-banking/internal/domain/dto"

	"github.com/spf13/cobra"
)

func newAskCmd(app *app) *cobra.Command {
	var server string
	var session string

	cmd := &cobra.Command{
		Use:   "ask TEXT",
		Short: "Send a spoken command to a running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = fmt.Sprintf("http://localhost:%s", app.cfg.Port)
			}

			payload, err := json.Marshal(dto.VoiceRequest{SpokenText: strings.Join(args, " "), SessionID: session})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, strings.TrimRight(server, "/")+"/process-command", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			res, err := app.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("send command: %w", err)
			}
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				var detail dto.ErrorResponse
				json.NewDecoder(res.Body).Decode(&detail)
				return fmt.Errorf("server returned %s: %s", res.Status, detail.Detail)
			}

			var response dto.CommandResponse
			if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return writeCommandResponse(cmd, response)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server base URL (default http://localhost:$PORT)")
	cmd.Flags().StringVar(&session, "session", "", "session id to continue a conversation")
	return cmd
}

func writeCommandResponse(cmd *cobra.Command, response dto.CommandResponse) error {
	out := cmd.OutOrStdout()
	if response.SpokenResponse == nil {
		fmt.Fprintln(out, "(no response)")
	} else {
		fmt.Fprintln(out, *response.SpokenResponse)
	}

	if d := response.Decision; d != nil && d.Kind != dto.DecisionAllow {
		fmt.Fprintf(out, "decision: %s", d.Kind)
		if d.RiskLevel != "" {
			fmt.Fprintf(out, " (%s, score %d)", d.RiskLevel, d.Score)
		}
		fmt.Fprintln(out)
	}
	if response.SessionID != "" {
		fmt.Fprintf(out, "session: %s\n", response.SessionID)
	}
	return nil
}
