// Package groq transcribes audio through the Groq speech API.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	defaultBaseURL = "https://api.groq.com"
	model          = "whisper-large-v3-turbo"

	// The API rejects uploads over 25MB; leave headroom for multipart
	// framing.
	maxUploadBytes = 24 * 1024 * 1024

	maxRetries = 2
)

// AudioExtractor produces the compressed mono audio the API accepts.
type AudioExtractor interface {
	ExtractAudioCompressed(ctx context.Context, inPath, outPath string) error
}

type Adapter struct {
	apiKey    string
	baseURL   string
	extractor AudioExtractor
	workDir   string
	client    *http.Client
	sleep     func(time.Duration)
}

func New(apiKey string, extractor AudioExtractor, workDir string) *Adapter {
	return &Adapter{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		extractor: extractor,
		workDir:   workDir,
		client:    &http.Client{Timeout: 5 * time.Minute},
		sleep:     time.Sleep,
	}
}

func (a *Adapter) Provider() string { return "remote" }

// Transcribe compresses the media to mono mp3, uploads it and parses the
// verbose word-level response.
func (a *Adapter) Transcribe(ctx context.Context, mediaPath string, logf ports.Logf) (types.Transcript, error) {
	if a.apiKey == "" {
		return types.Transcript{}, &ports.TranscriptionError{
			Provider: "remote",
			Err:      fmt.Errorf("GROQ_API_KEY is not set"),
		}
	}
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "remote", Err: err}
	}

	// Per-call name: the work dir is shared across concurrent jobs.
	mp3Path := filepath.Join(a.workDir, "upload-"+uuid.NewString()+".mp3")
	logf("INFO", "compressing audio for upload")
	if err := a.extractor.ExtractAudioCompressed(ctx, mediaPath, mp3Path); err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "remote", Err: err}
	}
	defer os.Remove(mp3Path)

	st, err := os.Stat(mp3Path)
	if err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "remote", Err: err}
	}
	if st.Size() > maxUploadBytes {
		return types.Transcript{}, &ports.TranscriptionError{
			Provider: "remote",
			Err:      fmt.Errorf("audio too large for upload: %.1f MB", float64(st.Size())/1024/1024),
		}
	}

	logf("INFO", "uploading %.1f MB of audio", float64(st.Size())/1024/1024)
	tr, err := a.upload(ctx, mp3Path, logf)
	if err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "remote", Err: err}
	}
	logf("INFO", "transcription complete: %d segments, %d words", len(tr.Segments), len(tr.Words()))
	return tr, nil
}

func (a *Adapter) upload(ctx context.Context, mp3Path string, logf ports.Logf) (types.Transcript, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 15 * time.Second
			logf("WARNING", "rate limited, retrying in %s", backoff)
			a.sleep(backoff)
			if ctx.Err() != nil {
				return types.Transcript{}, ctx.Err()
			}
		}

		tr, retry, err := a.attempt(ctx, mp3Path)
		if err == nil {
			return tr, nil
		}
		lastErr = err
		if !retry {
			return types.Transcript{}, err
		}
	}
	return types.Transcript{}, lastErr
}

func (a *Adapter) attempt(ctx context.Context, mp3Path string) (types.Transcript, bool, error) {
	f, err := os.Open(mp3Path)
	if err != nil {
		return types.Transcript{}, false, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(mp3Path))
	if err != nil {
		return types.Transcript{}, false, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return types.Transcript{}, false, err
	}
	mw.WriteField("model", model)
	mw.WriteField("response_format", "verbose_json")
	mw.WriteField("timestamp_granularities[]", "word")
	mw.WriteField("timestamp_granularities[]", "segment")
	if err := mw.Close(); err != nil {
		return types.Transcript{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/openai/v1/audio/transcriptions", &buf)
	if err != nil {
		return types.Transcript{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return types.Transcript{}, false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return types.Transcript{}, false, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return types.Transcript{}, true, fmt.Errorf("speech API rate limited: %s", truncate(body))
	}
	if resp.StatusCode != http.StatusOK {
		return types.Transcript{}, false, fmt.Errorf("speech API status %d: %s", resp.StatusCode, truncate(body))
	}

	tr, err := parseResponse(body)
	return tr, false, err
}

// parseResponse maps the verbose response onto segments, distributing the
// flat word list by timestamp.
func parseResponse(body []byte) (types.Transcript, error) {
	var out struct {
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse speech API response: %w", err)
	}

	var tr types.Transcript
	for _, s := range out.Segments {
		tr.Segments = append(tr.Segments, types.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	wi := 0
	for i := range tr.Segments {
		seg := &tr.Segments[i]
		for wi < len(out.Words) && out.Words[wi].Start < seg.End {
			w := out.Words[wi]
			seg.Words = append(seg.Words, types.Word{
				Word:  strings.TrimSpace(w.Word),
				Start: w.Start,
				End:   w.End,
			})
			wi++
		}
	}
	return tr, nil
}

func truncate(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
