package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/jordanmt/career-compass/backend/internal/config"
	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/service/tools"
)

// ModelProvider streams one model round for a persona. The persona's tools
// (including its synthetic transfer tools) are bound at construction, so a
// round needs only the message history.
type ModelProvider interface {
	Stream(ctx context.Context, personaID string, msgs []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// ArkProvider holds one chat model per persona, constructed once at startup
// with that persona's tool declarations bound.
type ArkProvider struct {
	models map[string]model.ChatModel
}

// NewArkProvider builds the per-persona models from the Ark configuration.
func NewArkProvider(ctx context.Context, cfg config.AIConfig, registry persona.Registry, toolReg *tools.Registry) (*ArkProvider, error) {
	provider := &ArkProvider{models: make(map[string]model.ChatModel)}

	for _, p := range registry.List() {
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("create chat model for persona %s: %w", p.ID, err)
		}

		infos := toolReg.Infos(ctx, p.Tools)
		infos = append(infos, handoffToolInfos(p, registry)...)
		if len(infos) > 0 {
			if err := chatModel.BindTools(infos); err != nil {
				return nil, fmt.Errorf("bind tools for persona %s: %w", p.ID, err)
			}
		}

		provider.models[p.ID] = chatModel
	}
	return provider, nil
}

// Stream runs one round for the persona's bound model.
func (p *ArkProvider) Stream(ctx context.Context, personaID string, msgs []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	m, ok := p.models[personaID]
	if !ok {
		return nil, fmt.Errorf("no model for persona %q", personaID)
	}
	return m.Stream(ctx, msgs)
}

// handoffPrefix names the synthetic transfer tools the adapter intercepts.
const handoffPrefix = "transfer_to_"

// handoffToolInfos declares one transfer tool per hand-off edge of the
// persona. These are never executed as real tools; the adapter turns their
// invocation into an agent-update.
func handoffToolInfos(p persona.Persona, registry persona.Registry) []*schema.ToolInfo {
	var infos []*schema.ToolInfo
	for _, targetID := range p.Handoffs {
		target, ok := registry.FindByID(targetID)
		if !ok {
			continue
		}
		infos = append(infos, &schema.ToolInfo{
			Name: handoffPrefix + target.ID,
			Desc: fmt.Sprintf("Transfer the conversation to %s. %s", target.Name, target.Description),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"reason": {
					Type: schema.String,
					Desc: "Short reason for the transfer, shown to the user.",
				},
			}),
		})
	}
	return infos
}
