package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/obralink/vale-audit/internal/model"
	"github.com/obralink/vale-audit/pkg/anthropic"
)

const systemText = `You audit delivery receipts ("vales") for construction material. ` +
	`You read scanned vale images and report exactly what is printed or handwritten on them. ` +
	`Never infer a value from the reference data: if you cannot read a field, report it as empty with confidence 0. ` +
	`Always respond with a single valid JSON object and nothing else.`

const extractPrompt = `Read this vale image and extract the four fields below.

Reference values from the dispatch sheet (for context only — report what the IMAGE says, even when it differs):
- numero_vale: %s
- placa: %s
- m3: %s
- fecha: %s
%s
Rules:
- fecha must be formatted DD/MM/YYYY.
- m3 is the delivered volume in cubic meters, digits only.
- confianza is your confidence in each reading, 0.0 to 1.0.
- A field you cannot read at all: {"valor": "", "confianza": 0.0}

Return a JSON object with exactly this shape:
{"numero_vale": {"valor": "...", "confianza": 0.0}, "placa": {"valor": "...", "confianza": 0.0}, "m3": {"valor": "...", "confianza": 0.0}, "fecha": {"valor": "...", "confianza": 0.0}}`

const qualityPrompt = `Rate how legible this vale image is for field extraction.

Return a JSON object with exactly this shape:
{"quality_score": 0, "is_readable": true, "reason": "..."}

quality_score is 0 (unreadable) to 10 (perfectly sharp). Set is_readable to false
when the image is too blurred, dark, cropped or damaged to extract fields from.`

// Config holds the Anthropic oracle settings.
type Config struct {
	Model          string
	MaxTokens      int64
	PromptCacheTTL string // cache-control TTL for the system prompt, "" to disable
}

// AnthropicOracle implements Oracle with a Claude vision model.
type AnthropicOracle struct {
	client anthropic.Client
	cfg    Config
}

// NewAnthropic creates the production oracle.
func NewAnthropic(client anthropic.Client, cfg Config) *AnthropicOracle {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return &AnthropicOracle{client: client, cfg: cfg}
}

func (o *AnthropicOracle) Extract(ctx context.Context, img Image, rec model.Record, validPlates []string) (model.Extraction, error) {
	platesBlock := ""
	if len(validPlates) > 0 {
		platesBlock = fmt.Sprintf("\nKnown fleet plates (the plate on the vale is one of these — use them to disambiguate unclear characters):\n%s\n",
			strings.Join(validPlates, ", "))
	}

	prompt := fmt.Sprintf(extractPrompt,
		rec.NumeroVale, rec.Placa, rec.M3, rec.Fecha, platesBlock)

	resp, err := o.call(ctx, img, prompt)
	if err != nil {
		return model.Extraction{}, eris.Wrapf(err, "oracle: extract record %s", rec.ID)
	}
	resp.Usage.LogCost(o.cfg.Model, "extract")

	ext, err := DecodeExtraction(resp.Text())
	if err != nil {
		return model.Extraction{}, err
	}
	return ext, nil
}

func (o *AnthropicOracle) CheckQuality(ctx context.Context, img Image) (model.QualityCheck, error) {
	resp, err := o.call(ctx, img, qualityPrompt)
	if err != nil {
		return model.QualityCheck{}, eris.Wrap(err, "oracle: quality check")
	}
	resp.Usage.LogCost(o.cfg.Model, "quality_gate")

	return DecodeQuality(resp.Text())
}

func (o *AnthropicOracle) call(ctx context.Context, img Image, prompt string) (*anthropic.MessageResponse, error) {
	temperature := 0.0
	system := anthropic.SystemBlock{Text: systemText}
	if o.cfg.PromptCacheTTL != "" {
		system.CacheControl = &anthropic.CacheControl{TTL: o.cfg.PromptCacheTTL}
	}

	return o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: &temperature,
		System:      []anthropic.SystemBlock{system},
		Messages: []anthropic.Message{
			{
				Role: "user",
				Content: []anthropic.Block{
					anthropic.ImageBlock(img.MediaType, img.Base64),
					anthropic.TextBlock(prompt),
				},
			},
		},
	})
}
