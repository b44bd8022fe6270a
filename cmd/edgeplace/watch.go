package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"edgeplace/internal/progress"
)

type watchCmd struct {
	RunID  string `arg:"" name:"run-id" help:"Run to follow."`
	Server string `help:"Base URL of the edgeplace server." default:"http://localhost:8080" env:"EDGEPLACE_SERVER"`
}

func (cmd *watchCmd) Run(ctx context.Context) error {
	u, err := progressURL(cmd.Server, cmd.RunID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer func() { _ = conn.Close() }()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	enc := json.NewEncoder(os.Stdout)
	for {
		var evt progress.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := enc.Encode(evt); err != nil {
			return err
		}
		if evt.Type == progress.EventRunFailed {
			return fmt.Errorf("run %s failed", cmd.RunID)
		}
		if evt.Terminal() {
			return nil
		}
	}
}

// progressURL maps an http(s) base URL to the run's websocket endpoint.
func progressURL(base, runID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/runs/" + runID + "/progress"
	return u.String(), nil
}
