package pipeline

import "strings"

const fence = "```"

// StripCodeFence removes a markdown code-fence wrapper from a model reply.
// Text after a "```json" marker wins. Otherwise the first bare fence opens the
// block, unless the prose before it already holds a '{', in which case that
// prose is kept. The result is then cut at the next closing fence.
func StripCodeFence(raw string) string {
	content := raw
	if idx := strings.Index(content, fence+"json"); idx >= 0 {
		content = content[idx+len(fence)+len("json"):]
	} else if idx := strings.Index(content, fence); idx >= 0 && !strings.Contains(content[:idx], "{") {
		content = content[idx+len(fence):]
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			content = content[nl+1:]
		} else {
			content = ""
		}
	}
	if idx := strings.Index(content, fence); idx >= 0 {
		content = content[:idx]
	}
	return content
}
