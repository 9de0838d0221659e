package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	ws := t.TempDir()

	cases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative inside", "notes/a.txt", false},
		{"dot", ".", false},
		{"escape with dotdot", "../outside.txt", true},
		{"sneaky escape", "notes/../../outside.txt", true},
		{"absolute outside", "/etc/passwd", true},
		{"absolute inside", filepath.Join(ws, "inside.txt"), false},
		{"empty", "", true},
	}
	for _, tc := range cases {
		_, err := resolvePath(ws, tc.path)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: resolvePath(%q) error = %v, wantErr %v", tc.name, tc.path, err, tc.wantErr)
		}
	}
}

func TestWriteThenReadFile(t *testing.T) {
	ws := t.TempDir()
	write := NewWriteFileTool(ws)
	read := NewReadFileTool(ws)

	out, err := write.Execute(context.Background(), map[string]any{
		"file_path": "sub/dir/hello.txt",
		"content":   "line1\nline2\nline3",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := out.(map[string]any); m["success"] != true {
		t.Fatalf("write result: %+v", m)
	}

	out, err = read.Execute(context.Background(), map[string]any{"file_path": "sub/dir/hello.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m := out.(map[string]any)
	if m["content"] != "line1\nline2\nline3" {
		t.Errorf("content = %q", m["content"])
	}
	if m["total_lines"] != 3 {
		t.Errorf("total_lines = %v", m["total_lines"])
	}
}

func TestReadFile_LineRange(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "f.txt"), []byte("a\nb\nc\nd"), 0o644); err != nil {
		t.Fatal(err)
	}

	read := NewReadFileTool(ws)
	out, err := read.Execute(context.Background(), map[string]any{
		"file_path":  "f.txt",
		"start_line": float64(2),
		"end_line":   float64(3),
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m := out.(map[string]any)
	if m["content"] != "b\nc" {
		t.Errorf("content = %q", m["content"])
	}
}

func TestReadFile_Missing(t *testing.T) {
	read := NewReadFileTool(t.TempDir())
	out, err := read.Execute(context.Background(), map[string]any{"file_path": "nope.txt"})
	if err != nil {
		t.Fatalf("a missing file is a structured result, not an error: %v", err)
	}
	m := out.(map[string]any)
	if m["exists"] != false {
		t.Errorf("result = %+v", m)
	}
}

func TestReadFile_EscapeDenied(t *testing.T) {
	read := NewReadFileTool(t.TempDir())
	if _, err := read.Execute(context.Background(), map[string]any{"file_path": "../../etc/passwd"}); err == nil {
		t.Fatal("expected workspace escape to be rejected")
	}
}

func TestListDir(t *testing.T) {
	ws := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ws, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "b.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	list := NewListDirTool(ws)
	out, err := list.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	m := out.(map[string]any)
	entries := m["entries"].([]string)
	want := []string{"a.txt", "b.txt", "subdir/"}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entries = %v, want %v", entries, want)
		}
	}
}
