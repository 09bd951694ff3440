package tools

import (
	"encoding/json"

	"github.com/containifyci/repostack/pkg/llmchat"
)

// Schemas returns the closed, ordered tool catalog advertised to the
// model (spec.md §6): list_files, read_file, search_files,
// get_file_tree, grep_content, get_best_practices, submit_detection.
func Schemas() []llmchat.ToolSchema {
	return []llmchat.ToolSchema{
		{
			Name:        "list_files",
			Description: "List files under a directory in the repository, optionally filtered by a glob pattern.",
			Parameters: obj(map[string]any{
				"path":      prop("string", "Directory path relative to the repository root."),
				"pattern":   prop("string", "Optional glob matched against file names, e.g. '*.json'."),
				"max_depth": prop("integer", "Maximum directory depth to descend (default 3)."),
			}, "path"),
		},
		{
			Name:        "read_file",
			Description: "Read a text file from the repository. Binary files and files over 1 MiB are refused.",
			Parameters: obj(map[string]any{
				"path":      prop("string", "File path relative to the repository root."),
				"max_lines": prop("integer", "Maximum lines to return (default 500); excess is truncated with a marker."),
			}, "path"),
		},
		{
			Name:        "search_files",
			Description: "Find files anywhere in the repository whose name or path matches a glob pattern.",
			Parameters: obj(map[string]any{
				"pattern":     prop("string", "Glob pattern, e.g. '*.toml' or 'src/*.rs'."),
				"max_results": prop("integer", "Maximum matches to return (default 20)."),
			}, "pattern"),
		},
		{
			Name:        "get_file_tree",
			Description: "Return the repository's directory structure as a JSON tree.",
			Parameters: obj(map[string]any{
				"path":  prop("string", "Subdirectory to root the tree at (default: repository root)."),
				"depth": prop("integer", "Tree depth (default 2)."),
			}),
		},
		{
			Name:        "grep_content",
			Description: "Search file contents with a regular expression, returning matching lines with file and line number.",
			Parameters: obj(map[string]any{
				"pattern":      prop("string", "Regular expression to match against each line."),
				"file_pattern": prop("string", "Optional glob restricting which files are searched."),
				"max_matches":  prop("integer", "Maximum matching lines to return (default 10)."),
			}, "pattern"),
		},
		{
			Name:        "get_best_practices",
			Description: "Return the canonical build template (base images, packages, commands, caches) for a language and build system.",
			Parameters: obj(map[string]any{
				"language":     prop("string", "Language identifier, e.g. 'rust' or 'javascript'."),
				"build_system": prop("string", "Build system identifier, e.g. 'cargo' or 'npm'."),
			}, "language", "build_system"),
		},
		{
			Name:        llmchat.SubmitDetectionTool,
			Description: "Submit the final UniversalBuild for this repository. Call this tool alone, with no other tools, once the analysis is complete; it validates the build and ends the analysis.",
			Parameters: obj(map[string]any{
				"universal_build": map[string]any{
					"type":        "object",
					"description": "The complete UniversalBuild document: version, metadata, build and runtime sections.",
				},
			}, "universal_build"),
		},
	}
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func obj(props map[string]any, required ...string) json.RawMessage {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)
	return data
}
