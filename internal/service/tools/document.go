package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/jordanmt/career-compass/backend/internal/blob"
)

// documentTool renders text content into the blob store and returns a
// reference the client can download. The "display" field of its result is
// forwarded to the client as a data event.
type documentTool struct {
	blobs blob.Store
}

func (t *documentTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "create_document",
		Desc: "Create a downloadable text or markdown document from content, e.g. a revised resume or a career plan.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"title": {
				Type:     schema.String,
				Desc:     "Document title, used as the file name.",
				Required: true,
			},
			"content": {
				Type:     schema.String,
				Desc:     "Full document content.",
				Required: true,
			},
			"format": {
				Type: schema.String,
				Desc: "Either 'md' or 'txt'. Defaults to 'md'.",
			},
		}),
	}, nil
}

func (t *documentTool) InvokableRun(ctx context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Format  string `json:"format"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if args.Title == "" || args.Content == "" {
		return "", fmt.Errorf("title and content are required")
	}

	ext := "md"
	contentType := "text/markdown"
	if strings.EqualFold(args.Format, "txt") {
		ext = "txt"
		contentType = "text/plain"
	}
	name := slugify(args.Title) + "." + ext

	obj, err := t.blobs.Upload(ctx, []byte(args.Content), name, contentType)
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}

	out, err := json.Marshal(struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
		Display any    `json:"display"`
	}{
		Success: true,
		URL:     obj.URL,
		Display: map[string]string{
			"kind":     "document-created",
			"title":    args.Title,
			"url":      obj.URL,
			"pathname": obj.Pathname,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(out), nil
}

func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "document"
	}
	return slug
}
