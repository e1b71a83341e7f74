package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "mixtape/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(endpoint string, timeout time.Duration) *ntfyService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (n *ntfyService) Publish(ctx context.Context, msg Message) error {
	return n.send(ctx, format(msg))
}

func (n *ntfyService) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

func format(msg Message) payload {
	elapsed := formatElapsed(msg.ElapsedSeconds)
	switch msg.Event {
	case EventBatchStarted:
		return payload{
			title:   "Mixtape - Batch Started",
			message: fmt.Sprintf("Rendering %d video(s)", msg.Requested),
			tags:    []string{"mixtape", "batch", "started"},
		}
	case EventJobFinished:
		p := payload{
			title: fmt.Sprintf("Mixtape - Video %d %s", msg.Job, msg.Status),
			tags:  []string{"mixtape", "job", msg.Status},
		}
		switch msg.Status {
		case "done":
			p.message = fmt.Sprintf("✅ %s (%s)", msg.Output, elapsed)
		case "failed":
			p.message = fmt.Sprintf("❌ Failed during %s: %s", msg.Stage, strings.TrimSpace(msg.Detail))
			p.priority = "high"
		default:
			p.message = fmt.Sprintf("Video %d %s after %s", msg.Job, msg.Status, elapsed)
		}
		return p
	case EventBatchCompleted:
		title := "Mixtape - Batch Complete"
		if msg.Failed > 0 {
			title = "Mixtape - Batch Complete (with errors)"
		}
		return payload{
			title:   title,
			message: fmt.Sprintf("%d done, %d failed, %d cancelled in %s", msg.Done, msg.Failed, msg.Cancelled, elapsed),
			tags:    []string{"mixtape", "batch", "completed"},
		}
	default:
		return payload{
			title:    "Mixtape - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"mixtape", "test"},
			priority: "low",
		}
	}
}

func formatElapsed(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
