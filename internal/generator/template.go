package generator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"csreply-backend/internal/inquiries"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// ErrNoTemplate means no template exists for the inquiry's category.
var ErrNoTemplate = errors.New("no template for category")

// TemplateGenerator fills a per-category reply template.
type TemplateGenerator struct {
	Confidence float64           `yaml:"confidence"`
	Templates  map[string]string `yaml:"templates"`
}

// NewTemplateGenerator loads the embedded templates.
func NewTemplateGenerator() (*TemplateGenerator, error) {
	return ParseTemplates(defaultTemplatesYAML)
}

// ParseTemplates decodes a templates document.
func ParseTemplates(data []byte) (*TemplateGenerator, error) {
	var g TemplateGenerator
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if len(g.Templates) == 0 {
		return nil, errors.New("templates: at least one template is required")
	}
	if g.Confidence <= 0 || g.Confidence > 100 {
		return nil, fmt.Errorf("templates: confidence %.2f outside (0,100]", g.Confidence)
	}
	normalized := make(map[string]string, len(g.Templates))
	for category, text := range g.Templates {
		normalized[strings.ToLower(strings.TrimSpace(category))] = strings.TrimSpace(text)
	}
	g.Templates = normalized
	return &g, nil
}

// Generate fills the template for the inquiry's category.
func (g *TemplateGenerator) Generate(ctx context.Context, inquiry inquiries.Inquiry) GenerationResult {
	if err := ctx.Err(); err != nil {
		return Failed(MethodTemplate, err)
	}
	tmpl, ok := g.Templates[strings.ToLower(inquiry.ClassifiedCategory)]
	if !ok || tmpl == "" {
		return Failed(MethodTemplate, fmt.Errorf("%w %q", ErrNoTemplate, inquiry.ClassifiedCategory))
	}

	customer := strings.TrimSpace(inquiry.CustomerName)
	if customer == "" {
		customer = "고객"
	}
	product := strings.TrimSpace(inquiry.ProductName)
	if product == "" {
		product = "주문하신 상품"
	}
	text := strings.NewReplacer("{{customer}}", customer, "{{product}}", product).Replace(tmpl)
	if strings.Contains(text, "{{") || strings.Contains(text, "}}") {
		return Failed(MethodTemplate, fmt.Errorf("template for %q has unresolved markers", inquiry.ClassifiedCategory))
	}
	return GenerationResult{OK: true, Text: text, Confidence: g.Confidence, Method: MethodTemplate}
}

var _ Generator = (*TemplateGenerator)(nil)
