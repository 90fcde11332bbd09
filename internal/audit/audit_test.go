package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/arinc839/cmcore/internal/config"
)

func TestNewSinkRequiresJSONLPath(t *testing.T) {
	if _, err := NewSink(config.AuditConfig{}); err == nil {
		t.Fatal("expected error when jsonl_path is empty")
	}
}

func TestRecordBearerGrantWritesJSONLLine(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(config.AuditConfig{JSONLPath: dir})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer sink.Close()

	sink.RecordBearerGrant("vdl2-left", 1, 2, 500, 500)
	sink.RecordLinkTransition("vdl2-left", "DOWN", "UP")

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one jsonl file, got %v err=%v", entries, err)
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []Record
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, rec)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if lines[0].Kind != KindBearerGrant || lines[1].Kind != KindLinkTransition {
		t.Fatalf("unexpected record kinds: %q, %q", lines[0].Kind, lines[1].Kind)
	}
	if lines[0].Fields["link_name"] != "vdl2-left" {
		t.Fatalf("expected link_name vdl2-left, got %v", lines[0].Fields["link_name"])
	}
}
