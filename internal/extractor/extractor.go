// Package extractor invokes the Claude API to turn raw email text or
// document bytes into a partial loan application. The model is treated as a
// black box: callers must tolerate per-call failures and malformed output.
package extractor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"loan-intake-go/internal/models"
)

// Client defines the extraction operations used by the pipeline.
type Client interface {
	ExtractEmailBody(ctx context.Context, body string) (*models.LoanApplication, error)
	ExtractDocument(ctx context.Context, data []byte, mimeType, fileName string, docType models.DocumentType) (*models.LoanApplication, error)
}

// supportedMediaTypes are the attachment formats the model can read.
// Anything else must be rejected by the caller before reaching this package.
var supportedMediaTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
}

// IsSupportedMediaType reports whether mimeType can be sent for extraction.
func IsSupportedMediaType(mimeType string) bool {
	return supportedMediaTypes[mimeType]
}

// AnthropicClient implements Client using the official anthropic-sdk-go.
type AnthropicClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// New creates an extraction client for the given API key and model.
func New(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 2048,
	}
}

// ExtractEmailBody extracts pre-filled application fields from an email body.
func (c *AnthropicClient) ExtractEmailBody(ctx context.Context, body string) (*models.LoanApplication, error) {
	user := fmt.Sprintf("Here is a loan request email. Extract all filled-in fields:\n\n%s", body)
	return c.complete(ctx, sdk.NewUserMessage(sdk.NewTextBlock(user)))
}

// ExtractDocument extracts application fields from a PDF or image attachment.
func (c *AnthropicClient) ExtractDocument(ctx context.Context, data []byte, mimeType, fileName string, docType models.DocumentType) (*models.LoanApplication, error) {
	if !IsSupportedMediaType(mimeType) {
		return nil, fmt.Errorf("unsupported media type: %s", mimeType)
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	var fileBlock sdk.ContentBlockParamUnion
	if mimeType == "application/pdf" {
		fileBlock = sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: encoded})
	} else {
		fileBlock = sdk.NewImageBlockBase64(mimeType, encoded)
	}

	instruction := fmt.Sprintf("This document is %q. Extract all relevant loan application fields. Document type: %s.", fileName, docType)
	return c.complete(ctx, sdk.NewUserMessage(fileBlock, sdk.NewTextBlock(instruction)))
}

func (c *AnthropicClient) complete(ctx context.Context, msg sdk.MessageParam) (*models.LoanApplication, error) {
	resp, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: extractionPrompt}},
		Messages:  []sdk.MessageParam{msg},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction model: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	app, err := parseApplication(text.String())
	if err != nil {
		return nil, err
	}

	logrus.Debugf("Extraction completed (prompt %s, model %s, %d input / %d output tokens)",
		promptVersion, c.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return app, nil
}

// parseApplication decodes the model's reply into a partial application.
// Replies wrapped in markdown code fences are unwrapped first.
func parseApplication(raw string) (*models.LoanApplication, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, fmt.Errorf("extraction model returned empty output")
	}

	var app models.LoanApplication
	if err := json.Unmarshal([]byte(cleaned), &app); err != nil {
		return nil, fmt.Errorf("failed to parse extraction output: %w", err)
	}
	return &app, nil
}
