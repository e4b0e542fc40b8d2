package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const webhookPath = "/webhook/elevenlabs"

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Voice-agent webhook tools",
	}

	cmd.AddCommand(newWebhookSimulateCmd())

	return cmd
}

func newWebhookSimulateCmd() *cobra.Command {
	var (
		baseURL    string
		hospital   string
		transcript string
		recording  string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post a sample post-call payload to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := samplePayload(hospital, transcript, recording)
			if err != nil {
				return err
			}

			target := strings.TrimSuffix(baseURL, "/") + webhookPath
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, target, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("posting to %s: %w", target, err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HTTP %d\n%s\n", resp.StatusCode, bytes.TrimSpace(respBody))

			var result struct {
				Status string `json:"status"`
				Detail string `json:"detail"`
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
			}
			if err := json.Unmarshal(respBody, &result); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			if result.Status != "processed" {
				return fmt.Errorf("webhook not processed: %s", result.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8000", "Base URL of the carenet server")
	cmd.Flags().StringVar(&hospital, "hospital", "NYU Langone Health", "Hospital name passed as a dynamic variable")
	cmd.Flags().StringVar(&transcript, "transcript", "Caller booked a visit for tomorrow morning.", "Call transcript")
	cmd.Flags().StringVar(&recording, "recording-url", "", "Recording URL (omitted when empty)")

	return cmd
}

// samplePayload builds a post-call payload shaped like the voice agent's.
func samplePayload(hospital, transcript, recording string) ([]byte, error) {
	p := map[string]any{
		"conversation_initiation_metadata": map[string]any{
			"dynamic_variables": map[string]any{
				"hospital_name": hospital,
			},
		},
		"transcript": transcript,
	}
	if recording != "" {
		p["recording_url"] = recording
	}
	return json.Marshal(p)
}
