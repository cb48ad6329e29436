// Package llm provides reasoning gateway clients for neuromem
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/types"
)

const systemPrompt = `You are the reasoning layer of a neuro-symbolic memory engine.
Answer the user's query using the retrieval context you are given.
Cite which memories or concepts informed the answer.
End your reply with a line of the form "CONFIDENCE: <0.0-1.0>".`

// confidenceRe matches the trailing confidence marker emitted by the model
var confidenceRe = regexp.MustCompile(`(?i)confidence:\s*([0-9]*\.?[0-9]+)`)

// buildPrompt renders the user-visible part of the gateway request
func buildPrompt(query, contextSummary string) string {
	var sb strings.Builder
	if contextSummary != "" {
		sb.WriteString("Retrieval context:\n")
		sb.WriteString(contextSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Query: ")
	sb.WriteString(query)
	return sb.String()
}

// parseResponse extracts the trace and confidence from raw model output.
// A missing or malformed confidence marker falls back to 0.75.
func parseResponse(raw string) *types.GatewayResponse {
	confidence := 0.75
	trace := strings.TrimSpace(raw)

	if m := confidenceRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			confidence = v
		}
		trace = strings.TrimSpace(confidenceRe.ReplaceAllString(trace, ""))
	}

	return &types.GatewayResponse{
		Trace:      trace,
		Confidence: confidence,
	}
}

// MockReasoner is an in-process reasoning gateway for tests and keyless
// operation. It echoes the retrieval context into a readable trace.
type MockReasoner struct {
	// Fail forces every call to return an error, simulating gateway outage
	Fail bool
}

// NewMockReasoner creates a deterministic in-process reasoning gateway
func NewMockReasoner() *MockReasoner {
	return &MockReasoner{}
}

// Reason synthesizes a canned answer from the query and context summary
func (m *MockReasoner) Reason(ctx context.Context, query string, contextSummary string) (*types.GatewayResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Fail {
		return nil, fmt.Errorf("mock reasoner: simulated gateway failure")
	}

	var sb strings.Builder
	sb.WriteString("Considering the query \"")
	sb.WriteString(query)
	sb.WriteString("\"")
	if contextSummary == "" {
		sb.WriteString(", no additional context was available.")
		return &types.GatewayResponse{Trace: sb.String(), Confidence: 0.3}, nil
	}
	sb.WriteString(", the following context informed the answer:\n")
	sb.WriteString(contextSummary)
	return &types.GatewayResponse{Trace: sb.String(), Confidence: 0.85}, nil
}

// GetModelInfo returns model information
func (m *MockReasoner) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"backend": string(types.BackendMock),
		"model":   "mock-llm",
	}
}

// Close closes the gateway
func (m *MockReasoner) Close() error {
	return nil
}

var _ interfaces.ReasoningLLM = (*MockReasoner)(nil)
