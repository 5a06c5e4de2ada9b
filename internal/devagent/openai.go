package devagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// OpenAIBackend 用 OpenAI 兼容接口生成回答，每个 delta 转成一个 content 事件
type OpenAIBackend struct {
	client *openai.Client
	model  string
	system string
	logger *logger.Logger
}

func NewOpenAIBackend(cfg conf.OpenAIConfig, log *logger.Logger) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("devagent.openai.api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if log == nil {
		log = logger.L()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	log.Info("openai backend created", zap.String("model", cfg.Model))
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		system: cfg.SystemPrompt,
		logger: log.Named("openai"),
	}, nil
}

func (o *OpenAIBackend) Name() string { return "openai" }

func (o *OpenAIBackend) Reply(ctx context.Context, req *types.ChatRequest, emit Emitter) (string, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: o.messages(req),
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("receive completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := emit(types.StreamEvent{Kind: types.EventContent, Delta: delta}); err != nil {
			return full.String(), err
		}
	}
}

// messages 图片路径是本机路径，模型看不到，只作为文字提示
func (o *OpenAIBackend) messages(req *types.ChatRequest) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if o.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.system})
	}

	content := req.Message
	if len(req.ImagePaths) > 0 {
		content += "\n\n[attached images: " + strings.Join(req.ImagePaths, ", ") + "]"
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content})
}
