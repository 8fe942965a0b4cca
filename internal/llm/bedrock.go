package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const providerBedrock = "bedrock"

// ConverseAPI is the part of the Bedrock runtime client this package calls.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient is the secondary provider, backed by the Converse API.
type BedrockClient struct {
	api     ConverseAPI
	modelID string
}

func NewBedrockClient(api ConverseAPI, modelID string) *BedrockClient {
	if api == nil {
		panic("llm: bedrock converse client cannot be nil")
	}
	return &BedrockClient{api: api, modelID: modelID}
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(c.modelID)
	}
	if model == "" {
		return Response{}, errors.New("llm: bedrock model id is required")
	}

	input, err := converseInput(model, req)
	if err != nil {
		return Response{}, err
	}
	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return Response{}, fmt.Errorf("llm: bedrock converse failed: %w", err)
	}
	return converseResponse(out)
}

// converseInput maps a Request onto Converse. Role "system" messages are
// folded into the system blocks; Converse only accepts user and assistant
// turns in Messages.
func converseInput(model string, req Request) (*bedrockruntime.ConverseInput, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		InferenceConfig: &brtypes.InferenceConfiguration{},
	}
	addSystem := func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			in.System = append(in.System, &brtypes.SystemContentBlockMemberText{Value: text})
		}
	}
	for _, s := range req.System {
		addSystem(s)
	}

	for _, msg := range req.Messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		var role brtypes.ConversationRole
		switch msg.Role {
		case RoleUser:
			role = brtypes.ConversationRoleUser
		case RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		case RoleSystem:
			addSystem(text)
			continue
		default:
			return nil, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
		in.Messages = append(in.Messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		})
	}

	if req.MaxTokens > 0 {
		in.InferenceConfig.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// negative means provider default
	if req.Temperature >= 0 {
		in.InferenceConfig.Temperature = aws.Float32(req.Temperature)
	}
	return in, nil
}

func converseResponse(out *bedrockruntime.ConverseOutput) (Response, error) {
	if out == nil {
		return Response{}, errors.New("llm: bedrock returned no output")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return Response{}, errors.New("llm: bedrock output is not a message")
	}

	var parts []string
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			parts = append(parts, t.Value)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return Response{}, errors.New("llm: bedrock message has no text")
	}

	resp := Response{Text: text, StopReason: string(out.StopReason), Provider: providerBedrock}
	if u := out.Usage; u != nil {
		resp.Usage = TokenUsage{
			InputTokens:  aws.ToInt32(u.InputTokens),
			OutputTokens: aws.ToInt32(u.OutputTokens),
			TotalTokens:  aws.ToInt32(u.TotalTokens),
		}
	}
	return resp, nil
}
