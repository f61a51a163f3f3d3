package whispercpp

import (
	"path/filepath"
	"testing"
)

const wordEvents = `{
  "transcription": [
    {"offsets": {"from": 0, "to": 400}, "text": " The"},
    {"offsets": {"from": 400, "to": 900}, "text": " market"},
    {"offsets": {"from": 900, "to": 1500}, "text": " crashed."},
    {"offsets": {"from": 1600, "to": 2000}, "text": " Nobody"},
    {"offsets": {"from": 2000, "to": 2600}, "text": " noticed?"},
    {"offsets": {"from": 2700, "to": 3100}, "text": " Wild!"},
    {"offsets": {"from": 3200, "to": 3500}, "text": ""}
  ]
}`

func TestParseOutput_GroupsWordsIntoSentences(t *testing.T) {
	tr, err := parseOutput([]byte(wordEvents))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(tr.Segments) != 3 {
		t.Fatalf("expected 3 sentence segments, got %d", len(tr.Segments))
	}

	first := tr.Segments[0]
	if first.Text != "The market crashed." {
		t.Errorf("segment text = %q", first.Text)
	}
	if first.Start != 0 || first.End != 1.5 {
		t.Errorf("segment bounds = %.1f-%.1f, want 0.0-1.5", first.Start, first.End)
	}
	if len(first.Words) != 3 || first.Words[1].Word != "market" || first.Words[1].Start != 0.4 {
		t.Errorf("unexpected words: %+v", first.Words)
	}

	if tr.Segments[1].Text != "Nobody noticed?" {
		t.Errorf("question mark must close a segment, got %q", tr.Segments[1].Text)
	}
	if tr.Segments[2].Text != "Wild!" {
		t.Errorf("exclamation must close a segment, got %q", tr.Segments[2].Text)
	}
	if len(tr.Words()) != 6 {
		t.Errorf("blank events must be dropped, got %d words", len(tr.Words()))
	}
}

func TestOutputPrefix_UniquePerCall(t *testing.T) {
	a := New("whisper", "model.bin", t.TempDir())

	p1 := a.outputPrefix()
	p2 := a.outputPrefix()
	// Jobs share the work dir, so a reused prefix would hand one job
	// another's transcript.
	if p1 == p2 {
		t.Fatalf("output prefix reused across calls: %s", p1)
	}
	if filepath.Dir(p1) != a.workDir || filepath.Dir(p2) != a.workDir {
		t.Fatalf("prefixes outside work dir: %s, %s", p1, p2)
	}
}

func TestParseOutput_BadJSON(t *testing.T) {
	if _, err := parseOutput([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseOutput_Empty(t *testing.T) {
	tr, err := parseOutput([]byte(`{"transcription": []}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tr.Empty() {
		t.Fatal("expected empty transcript")
	}
}
