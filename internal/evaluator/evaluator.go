// Package evaluator scores marketplace listings with a multimodal Gemini
// model grounded by Google Search, so retail price comparisons come from
// live web results rather than model memory.
package evaluator

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	modelName       = "gemini-2.0-flash-001"
	maxImages       = 2
	maxImageBytes   = 4 << 20 // per image
	imageGetTimeout = 10 * time.Second
)

// Input carries everything the model sees about one listing.
type Input struct {
	Title       string
	Price       *int // cents, nil when unlisted
	Description string
	ImageURLs   []string
	Query       string // the originating search query
	Preferences string // opaque user preference text, may be empty
}

// Evaluator wraps a configured Gemini model.
type Evaluator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	http   *http.Client
}

// New constructs an Evaluator. The model gets the Google Search retrieval
// tool, which precludes forced-JSON response mode — responses are free
// text expected to contain one JSON object (see ParseResponse).
func New(ctx context.Context, apiKey string) (*Evaluator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.Tools = []*genai.Tool{
		{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}},
	}

	return &Evaluator{
		client: client,
		model:  model,
		http:   &http.Client{Timeout: imageGetTimeout},
	}, nil
}

// Close releases the underlying API client.
func (e *Evaluator) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

// Evaluate scores one listing. It never returns an error: any failure —
// model call, response shape, JSON parse — yields the neutral Fallback
// assessment so the listing is still stored with non-committal scoring.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) Assessment {
	parts := []genai.Part{genai.Text(buildPrompt(in))}
	parts = append(parts, e.imageParts(ctx, in.ImageURLs)...)

	resp, err := e.model.GenerateContent(ctx, parts...)
	if err != nil {
		log.Printf("[evaluator] Model call failed for %q: %v — using fallback", in.Title, err)
		return Fallback()
	}

	text, err := responseText(resp)
	if err != nil {
		log.Printf("[evaluator] %v — using fallback", err)
		return Fallback()
	}

	assessment, err := ParseResponse(text)
	if err != nil {
		log.Printf("[evaluator] Unparsable assessment for %q: %v — using fallback", in.Title, err)
		return Fallback()
	}
	return assessment
}

// imageParts downloads up to maxImages listing photos and attaches them as
// inline model inputs. Individual fetch failures are skipped; evaluation
// proceeds on whatever succeeded, down to zero images.
func (e *Evaluator) imageParts(ctx context.Context, urls []string) []genai.Part {
	var parts []genai.Part
	for _, imgURL := range urls {
		if len(parts) >= maxImages {
			break
		}
		data, format, err := e.fetchImage(ctx, imgURL)
		if err != nil {
			log.Printf("[evaluator] Image fetch skipped url=%s err=%v", imgURL, err)
			continue
		}
		parts = append(parts, genai.ImageData(format, data))
	}
	return parts
}

func (e *Evaluator) fetchImage(ctx context.Context, imgURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("http status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}

	format, err := imageFormat(data)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

// imageFormat sniffs the content type and maps it to the short format name
// the genai SDK expects.
func imageFormat(data []byte) (string, error) {
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg":
		return "jpeg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	default:
		return "", fmt.Errorf("unsupported image content type %s", ct)
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("model response contained no text parts")
	}
	return sb.String(), nil
}

func buildPrompt(in Input) string {
	price := "not listed"
	if in.Price != nil {
		price = fmt.Sprintf("$%.2f", float64(*in.Price)/100)
	}

	preferences := ""
	if strings.TrimSpace(in.Preferences) != "" {
		preferences = fmt.Sprintf("\nBuyer preferences to keep in mind:\n%s\n", in.Preferences)
	}

	return fmt.Sprintf(`You are an expert deal appraiser for secondhand marketplace listings.
A buyer is searching for: %q

**Listing:**
- Title: %s
- Asking price: %s
- Description: %s
%s
**Your task:**
1. Identify the exact product (brand, model, year if determinable).
2. Use Google Search to find what this product sells for new at retail and used on resale markets today.
3. Compare the asking price against those prices.
4. Assess condition from the description and the attached photos.

**Scoring bands:**
- 80-100: exceptional deal, clearly well below market for the condition
- 70-79: good deal, worth alerting the buyer
- 50-69: fair price, nothing special
- 30-49: overpriced or a poor match for the search
- 1-29: skip — wrong item, scam signals, or junk

Respond with ONLY one JSON object, no markdown, matching exactly:
{
  "score": 0,
  "is_good_deal": false,
  "reasoning": "2-3 sentences on why this score",
  "product": "identified product name, or null if unidentifiable",
  "retail_low": 0,
  "retail_high": 0,
  "condition": "excellent" | "good" | "fair" | "poor" | "unknown",
  "market_comparison": "one sentence comparing asking price to current market prices"
}
retail_low and retail_high are the used-market price range in whole US dollars, or null when unknown.`,
		in.Query, in.Title, price, in.Description, preferences)
}
