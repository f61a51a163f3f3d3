// Package openrouter selects clip-worthy moments from a transcript through
// the OpenRouter chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	requestTimeout = 90 * time.Second
	maxAttempts    = 3
)

type Adapter struct {
	key     string
	baseURL string
	client  *http.Client
	sleep   func(time.Duration)
}

func New(apiKey, baseURL string) *Adapter {
	return &Adapter{
		key:     apiKey,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 5 * time.Minute},
		sleep:   time.Sleep,
	}
}

// SelectMoments asks the model for up to req.MaxClips moments and parses its
// JSON reply. The reply is retried up to maxAttempts times before the stage
// fails.
func (a *Adapter) SelectMoments(ctx context.Context, tr types.Transcript, req ports.SelectRequest, logf ports.Logf) ([]types.Moment, error) {
	if a.key == "" {
		return nil, &ports.SelectionError{Reason: "OPENROUTER_API_KEY is not set"}
	}
	if tr.Empty() {
		return nil, &ports.SelectionError{Reason: "no valid moments found"}
	}

	prompt := buildMomentPrompt(tr, req)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			logf("WARNING", "moment selection attempt %d/%d: %v", attempt, maxAttempts, lastErr)
			a.sleep(time.Duration(attempt) * 2 * time.Second)
			if ctx.Err() != nil {
				break
			}
		}

		logf("INFO", "requesting moments from %s (attempt %d)", req.Model, attempt)
		content, err := a.complete(ctx, req.Model, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		moments, err := parseMoments(content)
		if err != nil {
			lastErr = err
			continue
		}
		logf("INFO", "model proposed %d moments", len(moments))
		return moments, nil
	}
	return nil, &ports.SelectionError{Reason: "language model did not return usable moments", Err: lastErr}
}

func (a *Adapter) complete(ctx context.Context, model, prompt string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]any{"type": "json_object"},
		"temperature":     0.7,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, model)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	return messageContentToString(raw.Choices[0].Message.Content)
}

// buildMomentPrompt renders the transcript as timestamped lines and states
// the selection contract the response parser depends on.
func buildMomentPrompt(tr types.Transcript, req ports.SelectRequest) string {
	var sb strings.Builder
	for _, seg := range tr.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		m := int(seg.Start) / 60
		s := int(seg.Start) % 60
		fmt.Fprintf(&sb, "[%02d:%02d] %s\n", m, s, text)
	}

	dur := tr.Duration()
	maxDur := req.MaxDuration
	if dur > 0 && maxDur > dur {
		maxDur = dur
	}

	return fmt.Sprintf(`You are a short-form video editor. Below is a timestamped transcript of a video (%.0f seconds long).

Pick up to %d moments that would work as standalone vertical clips.

Rules for picking moments:
- Each moment must tell a complete micro-story: a setup, a payoff, and a clean ending on a finished thought.
- Strongly prefer moments that open with a hook: a bold claim, a surprising fact, a question, or the start of a story.
- Never start a moment mid-sentence or mid-word.
- Each moment must be between %.0f and %.0f seconds long.
- Moments must not overlap each other.

For every moment, also report:
- "hook_score": integer 1-10 for how likely the first 3 seconds stop a scrolling viewer.
- "hook_reason": one sentence explaining the score.
- "peak_offset": seconds from the moment's start to its single most gripping instant, or null if there is no clear peak.

Respond with a JSON object only, no markdown, in this exact shape:
{"clips": [{"start": <seconds>, "end": <seconds>, "title": "<short punchy title>", "reason": "<why this works>", "hook_score": <1-10>, "hook_reason": "<why>", "peak_offset": <seconds or null>}]}

Transcript:
%s`, dur, req.MaxClips, req.MinDuration, maxDur, sb.String())
}

// parseMoments tolerates fenced replies, a bare array instead of the
// requested object, and mm:ss strings in place of numeric seconds.
func parseMoments(content string) ([]types.Moment, error) {
	clean, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Clips []rawMoment `json:"clips"`
	}
	if strings.HasPrefix(clean, "[") {
		if err := json.Unmarshal([]byte(clean), &wrapper.Clips); err != nil {
			return nil, fmt.Errorf("parse moments array: %w", err)
		}
	} else if err := json.Unmarshal([]byte(clean), &wrapper); err != nil {
		return nil, fmt.Errorf("parse moments object: %w", err)
	}
	if len(wrapper.Clips) == 0 {
		return nil, errors.New("model returned no clips")
	}

	out := make([]types.Moment, 0, len(wrapper.Clips))
	for _, rm := range wrapper.Clips {
		start, err1 := rm.Start.seconds()
		end, err2 := rm.End.seconds()
		if err1 != nil || err2 != nil {
			continue
		}
		m := types.Moment{
			Start:      start,
			End:        end,
			Title:      strings.TrimSpace(rm.Title),
			Reason:     strings.TrimSpace(rm.Reason),
			HookScore:  rm.HookScore,
			HookReason: strings.TrimSpace(rm.HookReason),
		}
		if rm.PeakOffset != nil {
			off := *rm.PeakOffset
			m.PeakOffset = &off
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.New("no parseable clips in model reply")
	}
	return out, nil
}

type rawMoment struct {
	Start      flexSeconds `json:"start"`
	End        flexSeconds `json:"end"`
	Title      string      `json:"title"`
	Reason     string      `json:"reason"`
	HookScore  int         `json:"hook_score"`
	HookReason string      `json:"hook_reason"`
	PeakOffset *float64    `json:"peak_offset"`
}

// flexSeconds accepts 75, "75", "75.5" or "1:15".
type flexSeconds struct {
	raw json.RawMessage
}

func (f *flexSeconds) UnmarshalJSON(b []byte) error {
	f.raw = append(f.raw[:0], b...)
	return nil
}

func (f flexSeconds) seconds() (float64, error) {
	if len(f.raw) == 0 {
		return 0, errors.New("missing timestamp")
	}
	var n float64
	if err := json.Unmarshal(f.raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err != nil {
		return 0, fmt.Errorf("timestamp %s is neither number nor string", f.raw)
	}
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		m, err1 := strconv.Atoi(parts[0])
		sec, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("bad mm:ss timestamp %q", s)
		}
		return float64(m)*60 + sec, nil
	}
	return strconv.ParseFloat(s, 64)
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func extractJSON(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the outermost object, or a bare array.
	objStart := strings.Index(t, "{")
	arrStart := strings.Index(t, "[")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(t, "]"); end > arrStart {
			return t[arrStart : end+1], nil
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndex(t, "}"); end > objStart {
			return t[objStart : end+1], nil
		}
	}
	return "", fmt.Errorf("openrouter: could not locate JSON in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
