package evaluator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// GoodDealThreshold is the clamped score at which a listing counts as a
// good deal. The flag is always derived from the score, never taken from
// the model's own is_good_deal field.
const GoodDealThreshold = 70

// Assessment is the structured outcome of evaluating one listing.
type Assessment struct {
	Score      int // 1–100
	GoodDeal   bool
	Reasoning  string
	Product    string // "" when unidentified
	RetailLow  *int   // cents
	RetailHigh *int   // cents
	Condition  string // excellent | good | fair | poor | unknown
	Comparison string
}

// Fallback is the conservative neutral assessment used whenever
// evaluation fails. It keeps the listing storable without ever flagging
// it as a deal.
func Fallback() Assessment {
	return Assessment{
		Score:      50,
		GoodDeal:   false,
		Reasoning:  "Automatic evaluation was unavailable for this listing, so it received a neutral score.",
		Condition:  "unknown",
		Comparison: "No market comparison could be made for this listing.",
	}
}

// rawAssessment mirrors the JSON object the model is instructed to emit.
// Score and the retail bounds are float64 because models occasionally
// return fractional numbers despite the schema.
type rawAssessment struct {
	Score      float64  `json:"score"`
	IsGoodDeal bool     `json:"is_good_deal"`
	Reasoning  string   `json:"reasoning"`
	Product    *string  `json:"product"`
	RetailLow  *float64 `json:"retail_low"`
	RetailHigh *float64 `json:"retail_high"`
	Condition  string   `json:"condition"`
	Comparison string   `json:"market_comparison"`
}

// ParseResponse extracts the first JSON object from the model's free-text
// response and post-processes it into an Assessment: the score is rounded
// and clamped into [1,100], the good-deal flag recomputed from the clamped
// score, the condition label normalized, and dollar retail bounds
// converted to cents. A missing or malformed JSON object is an error.
func ParseResponse(text string) (Assessment, error) {
	obj, err := firstJSONObject(text)
	if err != nil {
		return Assessment{}, err
	}

	var raw rawAssessment
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Assessment{}, fmt.Errorf("assessment JSON: %w", err)
	}

	a := Assessment{
		Score:      clampScore(raw.Score),
		Reasoning:  strings.TrimSpace(raw.Reasoning),
		Condition:  normalizeCondition(raw.Condition),
		Comparison: strings.TrimSpace(raw.Comparison),
		RetailLow:  dollarsToCents(raw.RetailLow),
		RetailHigh: dollarsToCents(raw.RetailHigh),
	}
	a.GoodDeal = a.Score >= GoodDealThreshold
	if raw.Product != nil {
		a.Product = strings.TrimSpace(*raw.Product)
	}
	return a, nil
}

// firstJSONObject returns the first balanced {...} object in s. The model
// response may wrap the object in prose or a markdown fence.
func firstJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New("no JSON object in model response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unterminated JSON object in model response")
}

func clampScore(raw float64) int {
	score := int(math.Round(raw))
	if score < 1 {
		score = 1
	}
	if score > 100 {
		score = 100
	}
	return score
}

func normalizeCondition(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "excellent":
		return "excellent"
	case "good":
		return "good"
	case "fair":
		return "fair"
	case "poor":
		return "poor"
	default:
		return "unknown"
	}
}

func dollarsToCents(dollars *float64) *int {
	if dollars == nil || *dollars <= 0 {
		return nil
	}
	cents := int(math.Round(*dollars * 100))
	return &cents
}
