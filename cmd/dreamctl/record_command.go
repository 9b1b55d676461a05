package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/recording"
)

func newRecordCommand() *cobra.Command {
	var (
		serverURL string
		token     string
		duration  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record <audio-file>",
		Short: "Upload a recorded dream to a running journal service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = os.Getenv("JOURNAL_URL")
			}
			if token == "" {
				token = os.Getenv("DREAMCTL_TOKEN")
			}
			if serverURL == "" || token == "" {
				return errors.New("--server and --token are required (or JOURNAL_URL and DREAMCTL_TOKEN)")
			}
			session := recording.NewSession(recording.FileRecorder{Path: args[0], Duration: duration})
			if err := session.Start(cmd.Context()); err != nil {
				return err
			}
			if _, err := session.Stop(cmd.Context()); err != nil {
				return err
			}
			var dream domain.Dream
			err := session.Process(cmd.Context(), func(ctx context.Context, clip recording.Clip) error {
				d, err := uploadRecording(ctx, serverURL, token, filepath.Base(args[0]), clip)
				dream = d
				return err
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded %q (%s)\n", dream.Title, dream.ID)
			fmt.Fprintf(out, "Moods:   %s\n", moodList(dream.Moods))
			fmt.Fprintf(out, "Symbols: %s\n", symbolList(dream.Symbols))
			if dream.Interpretation != nil {
				fmt.Fprintf(out, "\n%s\n", *dream.Interpretation)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Journal service base URL (defaults to JOURNAL_URL)")
	cmd.Flags().StringVar(&token, "token", "", "Access token (defaults to DREAMCTL_TOKEN)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Length of the recording, e.g. 42s")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func uploadRecording(ctx context.Context, serverURL, token, filename string, clip recording.Clip) (domain.Dream, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename)},
		"Content-Type":        {clip.MIMEType},
	})
	if err != nil {
		return domain.Dream{}, err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return domain.Dream{}, err
	}
	if err := mw.WriteField("duration", strconv.FormatFloat(clip.Duration.Seconds(), 'f', -1, 64)); err != nil {
		return domain.Dream{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.Dream{}, err
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/api/dreams/record"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return domain.Dream{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := (&http.Client{Timeout: 3 * time.Minute}).Do(req)
	if err != nil {
		return domain.Dream{}, fmt.Errorf("upload recording: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Dream{}, err
	}
	if resp.StatusCode != http.StatusCreated {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return domain.Dream{}, fmt.Errorf("journal: %s", payload.Error)
		}
		return domain.Dream{}, fmt.Errorf("journal: unexpected status %d", resp.StatusCode)
	}
	var result struct {
		Dream domain.Dream `json:"dream"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.Dream{}, fmt.Errorf("decode record response: %w", err)
	}
	return result.Dream, nil
}
