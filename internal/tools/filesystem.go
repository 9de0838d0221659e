package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// resolvePath joins path against the workspace and rejects escapes. Every
// filesystem and patch operation goes through here; the workspace acts as
// the jail the original file tools enforced.
func resolvePath(workspace, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(workspace, p)
	}
	resolved := filepath.Clean(p)
	root := filepath.Clean(workspace)
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("access denied: %s is outside the workspace", path)
	}
	return resolved, nil
}

// ---------------------------------------------------------------------------
// ReadFileTool
// ---------------------------------------------------------------------------

// ReadFileTool reads a file, optionally restricted to a 1-based line range.
type ReadFileTool struct {
	workspace string
}

func NewReadFileTool(workspace string) *ReadFileTool { return &ReadFileTool{workspace: workspace} }

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file inside the workspace, optionally limited to a line range."
}
func (t *ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "Path to the file, relative to the workspace"},
			"start_line": {"type": "integer", "description": "1-based first line to include"},
			"end_line": {"type": "integer", "description": "1-based last line to include"}
		},
		"required": ["file_path"]
	}`)
}

func (t *ReadFileTool) Execute(_ context.Context, params map[string]any) (any, error) {
	path, _ := params["file_path"].(string)
	fp, err := resolvePath(t.workspace, path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fp)
	if err != nil {
		return map[string]any{"file_path": path, "error": "File not found", "exists": false}, nil
	}
	if !info.Mode().IsRegular() {
		return map[string]any{"file_path": path, "error": "Path is not a file", "exists": true}, nil
	}

	data, err := os.ReadFile(fp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)
	start, end := 1, total
	if v, ok := numParam(params, "start_line"); ok {
		start = v
	}
	if v, ok := numParam(params, "end_line"); ok {
		end = v
	}
	if start < 1 {
		start = 1
	}
	if end > total {
		end = total
	}
	if start > end {
		return map[string]any{
			"file_path": path,
			"error":     "Invalid line range",
			"total_lines": total,
		}, nil
	}

	return map[string]any{
		"file_path":   path,
		"content":     strings.Join(lines[start-1:end], "\n"),
		"total_lines": total,
		"line_range":  map[string]any{"start": start, "end": end},
		"size_bytes":  info.Size(),
	}, nil
}

// numParam extracts an integer argument (JSON numbers decode as float64).
func numParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// ---------------------------------------------------------------------------
// WriteFileTool
// ---------------------------------------------------------------------------

// WriteFileTool replaces a file's entire contents, creating parents as needed.
type WriteFileTool struct {
	workspace string
}

func NewWriteFileTool(workspace string) *WriteFileTool { return &WriteFileTool{workspace: workspace} }

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file inside the workspace, replacing it entirely. Creates parent directories if needed."
}
func (t *WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "Path to the file, relative to the workspace"},
			"content": {"type": "string", "description": "The full new file content"}
		},
		"required": ["file_path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(_ context.Context, params map[string]any) (any, error) {
	path, _ := params["file_path"].(string)
	content, _ := params["content"].(string)
	fp, err := resolvePath(t.workspace, path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fp, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return map[string]any{"file_path": path, "bytes_written": len(content), "success": true}, nil
}

// ---------------------------------------------------------------------------
// ApplyPatchTool
// ---------------------------------------------------------------------------

// ApplyPatchTool applies unified-diff patches with the system patch command,
// one file per patch entry.
type ApplyPatchTool struct {
	workspace string
}

func NewApplyPatchTool(workspace string) *ApplyPatchTool { return &ApplyPatchTool{workspace: workspace} }

func (t *ApplyPatchTool) Name() string { return "apply_patch" }
func (t *ApplyPatchTool) Description() string {
	return "Apply one or more diff patches to files inside the workspace."
}
func (t *ApplyPatchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"patches": {
				"type": "array",
				"description": "Patches to apply in order",
				"items": {
					"type": "object",
					"properties": {
						"file_path": {"type": "string", "description": "Path to the file, relative to the workspace"},
						"diff": {"type": "string", "description": "The diff content to apply"}
					},
					"required": ["file_path", "diff"]
				}
			}
		},
		"required": ["patches"]
	}`)
}

func (t *ApplyPatchTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	patches, _ := params["patches"].([]any)
	if len(patches) == 0 {
		return nil, fmt.Errorf("patches is required")
	}

	var outputs []string
	success := true
	for _, raw := range patches {
		p, _ := raw.(map[string]any)
		path, _ := p["file_path"].(string)
		diff, _ := p["diff"].(string)
		if path == "" || diff == "" {
			outputs = append(outputs, "Skipping a patch: each patch needs file_path and diff")
			success = false
			continue
		}

		fp, err := resolvePath(t.workspace, path)
		if err != nil {
			outputs = append(outputs, fmt.Sprintf("Skipping %s: %v", path, err))
			success = false
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
			outputs = append(outputs, fmt.Sprintf("Skipping %s: %v", path, err))
			success = false
			continue
		}

		cmd := exec.CommandContext(ctx, "patch", fp)
		cmd.Stdin = strings.NewReader(diff)
		out, err := cmd.CombinedOutput()
		if err != nil {
			outputs = append(outputs, fmt.Sprintf("Patch failed for %s: %v: %s", path, err, strings.TrimSpace(string(out))))
			success = false
			continue
		}
		outputs = append(outputs, fmt.Sprintf("Patched %s: %s", path, strings.TrimSpace(string(out))))
	}

	return map[string]any{"success": success, "output": strings.Join(outputs, "\n")}, nil
}

// ---------------------------------------------------------------------------
// ListDirTool
// ---------------------------------------------------------------------------

// ListDirTool lists directory entries inside the workspace.
type ListDirTool struct {
	workspace string
}

func NewListDirTool(workspace string) *ListDirTool { return &ListDirTool{workspace: workspace} }

func (t *ListDirTool) Name() string { return "list_dir" }
func (t *ListDirTool) Description() string {
	return "List the entries of a directory inside the workspace."
}
func (t *ListDirTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"dir_path": {"type": "string", "description": "Directory path relative to the workspace. Defaults to the workspace root."}
		}
	}`)
}

func (t *ListDirTool) Execute(_ context.Context, params map[string]any) (any, error) {
	path, _ := params["dir_path"].(string)
	if path == "" {
		path = "."
	}
	fp, err := resolvePath(t.workspace, path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fp)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return map[string]any{"dir_path": path, "entries": names, "count": len(names)}, nil
}
