package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/condotto-ai/condotto/pkg/schema"
)

// FileManager simulates a file system over an in-memory map so demos can
// exercise object-argument tool calls without touching disk. Paths are
// "dir/name"; the directory listing keeps names sorted.
type FileManager struct {
	dirs map[string][]string
}

// NewFileManager seeds the simulated tree with a few directories.
func NewFileManager() *FileManager {
	return &FileManager{
		dirs: map[string][]string{
			"docs": {"README.md", "guide.txt"},
			"src":  {"main.go", "util.go"},
			"data": {"config.json", "dataset.csv"},
		},
	}
}

// Tool exposes the manager as a callable tool.
func (f *FileManager) Tool() Tool {
	return Tool{
		Name:        "file_manager",
		Description: "Manage a simulated file system. Commands: list (directory contents), create (new file), delete (remove file).",
		Schema: schema.Object(map[string]*schema.Schema{
			"command": {Type: "string", Description: "Operation to perform", Enum: []string{"list", "create", "delete"}},
			"path":    schema.String("Directory for list, or dir/name path for create and delete"),
		}, "command", "path"),
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var args struct {
				Command string `json:"command"`
				Path    string `json:"path"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			switch args.Command {
			case "list":
				return f.list(args.Path)
			case "create":
				return f.create(args.Path)
			case "delete":
				return f.delete(args.Path)
			default:
				return nil, fmt.Errorf("unsupported command %q", args.Command)
			}
		},
	}
}

func splitPath(path string) (dir, name string, err error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path, nil
	}
	return path[:idx], path[idx+1:], nil
}

func (f *FileManager) list(path string) (any, error) {
	dir := strings.Trim(strings.TrimSpace(path), "/")
	files, ok := f.dirs[dir]
	if !ok {
		return nil, fmt.Errorf("directory %q not found", dir)
	}
	out := make([]string, len(files))
	copy(out, files)
	sort.Strings(out)
	return map[string]any{"path": dir, "files": out}, nil
}

func (f *FileManager) create(path string) (any, error) {
	dir, name, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	for _, existing := range f.dirs[dir] {
		if existing == name {
			return nil, fmt.Errorf("file %q already exists", path)
		}
	}
	f.dirs[dir] = append(f.dirs[dir], name)
	return map[string]any{"path": path, "created": true}, nil
}

func (f *FileManager) delete(path string) (any, error) {
	dir, name, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	files, ok := f.dirs[dir]
	if !ok {
		return nil, fmt.Errorf("file %q not found", path)
	}
	for i, existing := range files {
		if existing == name {
			f.dirs[dir] = append(files[:i:i], files[i+1:]...)
			return map[string]any{"path": path, "deleted": true}, nil
		}
	}
	return nil, fmt.Errorf("file %q not found", path)
}
