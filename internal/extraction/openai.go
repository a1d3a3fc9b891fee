package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider extracts invoice fields by sending rendered page images to
// a vision-capable chat model with a JSON response format.
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	maxPages int
	logger   *zap.Logger
}

// NewOpenAIProvider creates a vision-based extraction provider.
func NewOpenAIProvider(client *openai.Client, model string, maxPages int, logger *zap.Logger) *OpenAIProvider {
	if maxPages <= 0 {
		maxPages = 2
	}
	return &OpenAIProvider{
		client:   client,
		model:    model,
		maxPages: maxPages,
		logger:   logger,
	}
}

// visionValue pairs an extracted value with the model's self-reported
// confidence for that field.
type visionValue struct {
	Value      *string  `json:"value"`
	Confidence *float64 `json:"confidence"`
}

type visionNumber struct {
	Value      *float64 `json:"value"`
	Confidence *float64 `json:"confidence"`
}

type visionAddress struct {
	HouseNumber   string   `json:"house_number"`
	Road          string   `json:"road"`
	City          string   `json:"city"`
	Unit          string   `json:"unit"`
	StreetAddress string   `json:"street_address"`
	Confidence    *float64 `json:"confidence"`
}

type visionItem struct {
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        *string  `json:"unit"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
	ProductCode *string  `json:"product_code"`
	Date        *string  `json:"date"`
	Tax         *string  `json:"tax"`
}

type visionPayload struct {
	VendorName      visionValue    `json:"vendor_name"`
	VendorTaxID     visionValue    `json:"vendor_tax_id"`
	VendorAddress   *visionAddress `json:"vendor_address"`
	CustomerName    visionValue    `json:"customer_name"`
	CustomerTaxID   visionValue    `json:"customer_tax_id"`
	CustomerAddress *visionAddress `json:"customer_address"`
	InvoiceID       visionValue    `json:"invoice_id"`
	InvoiceDate     visionValue    `json:"invoice_date"`
	DueDate         visionValue    `json:"due_date"`
	Subtotal        visionNumber   `json:"subtotal"`
	TotalTax        visionNumber   `json:"total_tax"`
	InvoiceTotal    visionNumber   `json:"invoice_total"`
	PaymentTerm     visionValue    `json:"payment_term"`
	ServiceStart    visionValue    `json:"service_start_date"`
	ServiceEnd      visionValue    `json:"service_end_date"`
	InvoiceType     visionValue    `json:"invoice_type"`
	PointOfSale     visionValue    `json:"point_of_sale"`
	CAE             visionValue    `json:"cae"`
	CAEDueDate      visionValue    `json:"cae_due_date"`
	Currency        visionValue    `json:"currency"`
	ExchangeRate    visionNumber   `json:"exchange_rate"`
	Items           []visionItem   `json:"items"`
}

const visionSystemPrompt = "You are an expert reader of Argentine fiscal invoices (facturas AFIP). " +
	"You extract every field with maximum care, including the comprobante letter (A/B/C), punto de venta, " +
	"CAE and its due date. Always respond with valid JSON only."

const visionUserPrompt = `Extract the invoice data from the attached page images into this JSON shape:
{
  "vendor_name": {"value": str|null, "confidence": 0..1},
  "vendor_tax_id": {"value": str|null, "confidence": 0..1},
  "vendor_address": {"house_number": str, "road": str, "city": str, "unit": str, "street_address": str, "confidence": 0..1} | null,
  "customer_name": {"value": str|null, "confidence": 0..1},
  "customer_tax_id": {"value": str|null, "confidence": 0..1},
  "customer_address": { ... same as vendor_address ... } | null,
  "invoice_id": {"value": str|null, "confidence": 0..1},
  "invoice_date": {"value": "YYYY-MM-DD"|null, "confidence": 0..1},
  "due_date": {"value": "YYYY-MM-DD"|null, "confidence": 0..1},
  "subtotal": {"value": number|null, "confidence": 0..1},
  "total_tax": {"value": number|null, "confidence": 0..1},
  "invoice_total": {"value": number|null, "confidence": 0..1},
  "payment_term": {"value": str|null, "confidence": 0..1},
  "service_start_date": {"value": "YYYY-MM-DD"|null, "confidence": 0..1},
  "service_end_date": {"value": "YYYY-MM-DD"|null, "confidence": 0..1},
  "invoice_type": {"value": "A"|"B"|"C"|"E"|"M"|"NC"|null, "confidence": 0..1},
  "point_of_sale": {"value": str|null, "confidence": 0..1},
  "cae": {"value": str|null, "confidence": 0..1},
  "cae_due_date": {"value": "YYYY-MM-DD"|null, "confidence": 0..1},
  "currency": {"value": str|null, "confidence": 0..1},
  "exchange_rate": {"value": number|null, "confidence": 0..1},
  "items": [{"description": str|null, "quantity": number|null, "unit": str|null,
             "unit_price": number|null, "amount": number|null, "product_code": str|null,
             "date": "YYYY-MM-DD"|null, "tax": str|null}]
}
Use null for anything not present on the document. Amounts are plain numbers without thousand separators.`

// Analyze renders the document and asks the vision model for structured
// fields, converting the response into the provider-neutral field bag.
func (p *OpenAIProvider) Analyze(ctx context.Context, data []byte, url string) (*AnalyzeResult, error) {
	images, err := pageImages(data, p.maxPages)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare document pages: %w", err)
	}

	p.logger.Info("Analyzing document with vision model",
		zap.String("model", p.model),
		zap.Int("pages", len(images)),
		zap.String("url", url))

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: visionUserPrompt,
	}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.1,
		MaxTokens:   4096,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: visionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction model returned no choices")
	}

	var payload visionPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		p.logger.Error("Failed to parse extraction response",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	return payload.toResult(), nil
}

// field converters return nil when the model reported no usable value.

func (v visionValue) field() *Field {
	if v.Value == nil || *v.Value == "" {
		return nil
	}
	return &Field{String: v.Value, Confidence: conf(v.Confidence)}
}

func (v visionValue) dateField() *Field {
	if v.Value == nil {
		return nil
	}
	d, err := time.Parse("2006-01-02", *v.Value)
	if err != nil {
		return nil
	}
	return &Field{Date: &d, Confidence: conf(v.Confidence)}
}

func (v visionNumber) currencyField() *Field {
	if v.Value == nil {
		return nil
	}
	return &Field{Currency: &Currency{Amount: *v.Value}, Confidence: conf(v.Confidence)}
}

func (a *visionAddress) field() *Field {
	if a == nil {
		return nil
	}
	return &Field{
		Address: &Address{
			HouseNumber:   a.HouseNumber,
			Road:          a.Road,
			City:          a.City,
			Unit:          a.Unit,
			StreetAddress: a.StreetAddress,
		},
		Confidence: conf(a.Confidence),
	}
}

func conf(c *float64) float64 {
	if c == nil {
		return 0
	}
	return *c
}

func (p *visionPayload) toResult() *AnalyzeResult {
	fields := make(map[string]Field)
	set := func(name string, f *Field) {
		if f != nil {
			fields[name] = *f
		}
	}

	set("VendorName", p.VendorName.field())
	set("VendorTaxId", p.VendorTaxID.field())
	set("VendorAddress", p.VendorAddress.field())
	set("CustomerName", p.CustomerName.field())
	set("CustomerTaxId", p.CustomerTaxID.field())
	set("CustomerAddress", p.CustomerAddress.field())
	set("InvoiceId", p.InvoiceID.field())
	set("InvoiceDate", p.InvoiceDate.dateField())
	set("DueDate", p.DueDate.dateField())
	set("SubTotal", p.Subtotal.currencyField())
	set("TotalTax", p.TotalTax.currencyField())
	set("InvoiceTotal", p.InvoiceTotal.currencyField())
	set("PaymentTerm", p.PaymentTerm.field())
	set("ServiceStartDate", p.ServiceStart.dateField())
	set("ServiceEndDate", p.ServiceEnd.dateField())
	set("InvoiceType", p.InvoiceType.field())
	set("PointOfSale", p.PointOfSale.field())
	set("CAE", p.CAE.field())
	set("CAEDueDate", p.CAEDueDate.dateField())
	set("Currency", p.Currency.field())
	set("ExchangeRate", p.ExchangeRate.currencyField())

	items := make([]Field, 0, len(p.Items))
	for _, it := range p.Items {
		obj := make(map[string]Field)
		if it.Description != nil {
			obj["Description"] = Field{String: it.Description}
		}
		if it.Quantity != nil {
			obj["Quantity"] = Field{Number: it.Quantity}
		}
		if it.Unit != nil {
			obj["Unit"] = Field{String: it.Unit}
		}
		if it.UnitPrice != nil {
			obj["UnitPrice"] = Field{Currency: &Currency{Amount: *it.UnitPrice}}
		}
		if it.Amount != nil {
			obj["Amount"] = Field{Currency: &Currency{Amount: *it.Amount}}
		}
		if it.ProductCode != nil {
			obj["ProductCode"] = Field{String: it.ProductCode}
		}
		if it.Date != nil {
			if d, err := time.Parse("2006-01-02", *it.Date); err == nil {
				obj["Date"] = Field{Date: &d}
			}
		}
		if it.Tax != nil {
			obj["Tax"] = Field{String: it.Tax}
		}
		items = append(items, Field{Object: obj})
	}
	if len(items) > 0 {
		fields["Items"] = Field{Array: items}
	}

	return &AnalyzeResult{Documents: []Document{{Fields: fields}}}
}
