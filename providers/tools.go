package providers

import (
	"fmt"
	"time"

	"github.com/orchestra-mcp/realtime/src/types"
)

// ToolDefinition describes an operation exposed to agent tooling.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     func(args map[string]any) (any, error)
}

// McpTools returns the tool definitions contributed by the realtime client.
func (p *ClientPlugin) McpTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "realtime_status",
			Description: "Show the realtime connection state, last error and reconnect history",
			InputSchema: map[string]any{},
			Handler:     p.toolStatus,
		},
		{
			Name:        "realtime_send",
			Description: "Send a message on the realtime connection",
			InputSchema: map[string]any{
				"type":  map[string]any{"type": "string", "description": "Message type"},
				"scope": map[string]any{"type": "string", "description": "Routing scope"},
				"data":  map[string]any{"type": "object", "description": "Message data"},
			},
			Handler: p.toolSend,
		},
		{
			Name:        "realtime_reconnect",
			Description: "Replace the realtime connection with a new one",
			InputSchema: map[string]any{},
			Handler:     p.toolReconnect,
		},
	}
}

func (p *ClientPlugin) toolStatus(_ map[string]any) (any, error) {
	if p.service == nil {
		return nil, fmt.Errorf("realtime service not initialized")
	}
	return p.service.Status(), nil
}

func (p *ClientPlugin) toolSend(args map[string]any) (any, error) {
	if p.service == nil {
		return nil, fmt.Errorf("realtime service not initialized")
	}
	typ, _ := args["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("type is required")
	}
	scope, _ := args["scope"].(string)
	data, ok := args["data"].(map[string]any)
	if !ok {
		data = map[string]any{}
	}

	env := types.Envelope{Type: typ, Scope: scope, Data: data, Timestamp: time.Now()}
	if err := p.service.Send(env); err != nil {
		return nil, err
	}
	return map[string]any{"sent": true, "type": typ}, nil
}

func (p *ClientPlugin) toolReconnect(_ map[string]any) (any, error) {
	if p.service == nil {
		return nil, fmt.Errorf("realtime service not initialized")
	}
	if err := p.service.Reconnect(); err != nil {
		return nil, err
	}
	return map[string]any{"reconnecting": true}, nil
}
