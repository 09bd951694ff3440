package pipeline

import (
	"context"
	"fmt"

	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/containifyci/repostack/pkg/tools"
	"github.com/containifyci/repostack/pkg/ubuild"
)

// DefaultMaxIterations bounds the tool-calling loop (spec.md §4.6).
const DefaultMaxIterations = 10

const loopSystemPrompt = "You are a build-detection assistant analyzing a source repository. " +
	"Use the provided tools to inspect files and identify the language, build system, framework, " +
	"runtime surface and build recipe. When your analysis is complete, call submit_detection exactly " +
	"once, alone, with the full UniversalBuild. Never answer in prose; always call a tool."

const reminderMessage = "You must call a tool. Inspect the repository with list_files, read_file, " +
	"grep_content or get_best_practices, or finish by calling submit_detection with the complete UniversalBuild."

const rejectSubmitAlongsideMessage = "submit_detection must be called alone. Finish your other " +
	"inspections first, then call only submit_detection when ready."

// RunDetectionLoop drives the main tool-calling loop: the LLM explores
// the repository through the Tool System until it calls the terminal
// submit_detection tool, whose argument is parsed, validated and
// returned. Tool-level failures travel back to the model as tool
// responses; loop-level failures (no tool call twice in a row, max
// iterations) are IterationErrors.
func RunDetectionLoop(ctx context.Context, client llmchat.Client, exec *tools.Executor, maxIterations int) (ubuild.UniversalBuild, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	messages := []llmchat.ChatMessage{
		{Role: llmchat.RoleSystem, Content: loopSystemPrompt},
		{Role: llmchat.RoleUser, Content: "Analyze this repository and produce its UniversalBuild."},
	}
	schemas := tools.Schemas()
	consecutiveReminders := 0

	for iteration := 1; iteration <= maxIterations; iteration++ {
		resp, err := client.Chat(ctx, llmchat.ChatRequest{Messages: messages, Tools: schemas})
		if err != nil {
			return ubuild.UniversalBuild{}, fmt.Errorf("iteration %d: %w", iteration, err)
		}

		calls := collectToolCalls(resp)
		if len(calls) == 0 {
			consecutiveReminders++
			if consecutiveReminders >= 2 {
				return ubuild.UniversalBuild{}, &IterationError{
					Iterations: iteration,
					Reason:     "the model failed to call any tool twice in a row",
				}
			}
			messages = append(messages,
				llmchat.ChatMessage{Role: llmchat.RoleAssistant, Content: resp.Content},
				llmchat.ChatMessage{Role: llmchat.RoleUser, Content: reminderMessage})
			continue
		}
		consecutiveReminders = 0

		messages = append(messages, llmchat.ChatMessage{
			Role:      llmchat.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
		})

		submitIdx := indexOfSubmit(calls)

		// A lone submit_detection (or one on the final iteration) is
		// terminal: parse, validate, return.
		if submitIdx >= 0 && (len(calls) == 1 || iteration == maxIterations) {
			build, err := exec.ParseSubmission(calls[submitIdx].Arguments)
			if err != nil {
				return ubuild.UniversalBuild{}, fmt.Errorf("submit_detection: %w", err)
			}
			return build, nil
		}

		// Dispatch every call in declaration order; results are appended
		// in the same order and never re-enter the model until the next
		// iteration. submit_detection alongside other tools is rejected
		// with an instructive tool response.
		for _, call := range calls {
			var content string
			if call.Name == llmchat.SubmitDetectionTool {
				content = fmt.Sprintf(`{"error": %q}`, rejectSubmitAlongsideMessage)
			} else {
				content = exec.Dispatch(ctx, call).Message()
			}
			messages = append(messages, llmchat.ChatMessage{
				Role:       llmchat.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return ubuild.UniversalBuild{}, &IterationError{
		Iterations: maxIterations,
		Reason:     "max iterations exceeded without a terminal submit_detection",
	}
}

// collectToolCalls normalizes a response into its ordered tool-call
// list. A ChatResponse carries at most one call (ToolCall), so the list
// has zero or one entry.
func collectToolCalls(resp llmchat.ChatResponse) []llmchat.ToolCall {
	if resp.ToolCall == nil {
		return nil
	}
	return []llmchat.ToolCall{*resp.ToolCall}
}

func indexOfSubmit(calls []llmchat.ToolCall) int {
	for i, c := range calls {
		if c.Name == llmchat.SubmitDetectionTool {
			return i
		}
	}
	return -1
}
