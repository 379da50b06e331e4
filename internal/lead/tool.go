package lead

import "github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"

// ToolName is the function name the model uses to record lead details.
const ToolName = "update_lead_info"

// Tool returns the update_lead_info declaration offered to the model at
// session setup. Every property is optional; the model sends whichever
// fields it just learned.
func Tool() live.ToolDefinition {
	return live.ToolDefinition{
		Name: ToolName,
		Description: "Record details about the caller as soon as they come up in conversation. " +
			"Call this every time you learn something new; include only the fields you just learned.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The caller's name.",
				},
				"company": map[string]any{
					"type":        "string",
					"description": "The caller's company or organisation.",
				},
				"email": map[string]any{
					"type":        "string",
					"description": "The caller's email address.",
				},
				"role": map[string]any{
					"type":        "string",
					"description": "The caller's job title or function.",
				},
				"useCase": map[string]any{
					"type":        "string",
					"description": "What the caller wants to use the product for.",
				},
				"teamSize": map[string]any{
					"type":        "string",
					"description": "The size of the caller's team.",
				},
				"timeline": map[string]any{
					"type":        "string",
					"description": "When the caller plans to adopt or decide.",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "A one-sentence running summary of the conversation so far.",
				},
			},
		},
	}
}
