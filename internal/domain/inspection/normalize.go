package inspection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
)

// ErrMalformedResponse is returned when model output cannot be parsed or
// violates the result schema.
var ErrMalformedResponse = errors.New("malformed model response")

// ConfidenceThreshold is the minimum confidence (0-100) for a result to surface.
const ConfidenceThreshold = 50

const resultSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["specCode"],
        "properties": {
          "specCode": { "type": "string" },
          "found": { "type": ["boolean", "null"] },
          "confidence": { "type": ["number", "null"], "minimum": 0 },
          "result": { "type": ["string", "null"] },
          "severity": { "type": ["string", "null"] },
          "finding": { "type": ["string", "null"] },
          "findingAr": { "type": ["string", "null"] },
          "instancesVisible": { "type": ["integer", "null"], "minimum": 0 },
          "recommendation": { "type": ["string", "null"] },
          "recommendationAr": { "type": ["string", "null"] },
          "imageQuality": { "type": ["string", "null"] },
          "evidenceValid": { "type": ["boolean", "null"] }
        }
      }
    }
  }
}`

var resultSchemaLoader = gojsonschema.NewStringLoader(resultSchemaJSON)

type rawResult struct {
	SpecCode         string   `json:"specCode"`
	Found            *bool    `json:"found"`
	Confidence       *float64 `json:"confidence"`
	Result           *string  `json:"result"`
	Severity         *string  `json:"severity"`
	Finding          *string  `json:"finding"`
	FindingAr        *string  `json:"findingAr"`
	InstancesVisible *float64 `json:"instancesVisible"`
	Recommendation   *string  `json:"recommendation"`
	RecommendationAr *string  `json:"recommendationAr"`
	ImageQuality     *string  `json:"imageQuality"`
	EvidenceValid    *bool    `json:"evidenceValid"`
}

// StripFences returns the body of the first Markdown code fence in raw, or
// the trimmed text when there is none. Prose before or after the fence is
// dropped.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "```")
	if start < 0 || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	s = s[start+3:]
	// language tag on the opening fence line, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// Normalize turns raw model text into validated results for the requested
// specs. Unknown spec codes, found=false items and items under the confidence
// threshold are dropped. scale is the provider's confidence convention; unit
// values are converted to the 0-100 scale before thresholding.
func Normalize(raw string, specs []ChecklistSpec, scale ai.ConfidenceScale) ([]AnalysisResult, error) {
	doc, err := envelopeDocument(StripFences(raw), specs)
	if err != nil {
		return nil, err
	}

	res, err := gojsonschema.Validate(resultSchemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
	}

	var env struct {
		Results []rawResult `json:"results"`
	}
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	known := make(map[string]string, len(specs))
	for _, s := range specs {
		code := strings.TrimSpace(s.Code)
		known[strings.ToUpper(code)] = code
	}

	out := make([]AnalysisResult, 0, len(env.Results))
	emitted := make(map[string]bool, len(env.Results))
	for _, item := range env.Results {
		code, ok := known[strings.ToUpper(strings.TrimSpace(item.SpecCode))]
		if !ok || emitted[code] {
			continue
		}
		if item.Found != nil && !*item.Found {
			continue
		}
		confidence := canonicalConfidence(item.Confidence, scale)
		if confidence < ConfidenceThreshold {
			continue
		}
		emitted[code] = true

		r := AnalysisResult{
			SpecCode:         code,
			Result:           CanonicalVerdict(deref(item.Result)),
			Confidence:       confidence,
			Severity:         CanonicalSeverity(deref(item.Severity)),
			Finding:          deref(item.Finding),
			FindingAr:        deref(item.FindingAr),
			InstancesVisible: instances(item.InstancesVisible),
			Recommendation:   deref(item.Recommendation),
			RecommendationAr: deref(item.RecommendationAr),
			ImageQuality:     CanonicalImageQuality(deref(item.ImageQuality)),
			EvidenceValid:    true,
		}
		if item.EvidenceValid != nil {
			r.EvidenceValid = *item.EvidenceValid
		}
		out = append(out, r)
	}
	return out, nil
}

// envelopeDocument accepts {"results":[...]}, a bare array, or a single
// result object and returns the canonical {"results":[...]} document.
func envelopeDocument(text string, specs []ChecklistSpec) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing content after JSON value", ErrMalformedResponse)
	}

	var items []any
	switch t := v.(type) {
	case map[string]any:
		if rs, ok := t["results"]; ok {
			arr, ok := rs.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: results is not an array", ErrMalformedResponse)
			}
			items = arr
		} else {
			items = []any{t}
		}
	case []any:
		items = t
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrMalformedResponse)
	}

	// Single-spec prompts may omit the code.
	if len(specs) == 1 {
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				if _, has := m["specCode"]; !has {
					m["specCode"] = specs[0].Code
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]any{"results": items}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return buf.Bytes(), nil
}

func canonicalConfidence(v *float64, scale ai.ConfidenceScale) float64 {
	if v == nil {
		return 0
	}
	c := *v
	if scale == ai.ScaleUnit {
		c *= 100
	}
	return math.Max(0, math.Min(100, c))
}

func canonicalToken(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// CanonicalVerdict maps provider vocabulary onto the four verdicts.
func CanonicalVerdict(s string) Verdict {
	switch canonicalToken(s) {
	case "PASS", "PASSED", "COMPLIANT", "OK":
		return VerdictPass
	case "FAIL", "FAILED", "NON_COMPLIANT", "NONCOMPLIANT":
		return VerdictFail
	case "UNCERTAIN", "UNKNOWN", "INCONCLUSIVE":
		return VerdictUncertain
	default:
		// REVIEW, NEEDS_REVIEW and anything unrecognised
		return VerdictNeedsReview
	}
}

// CanonicalSeverity defaults to OK.
func CanonicalSeverity(s string) Severity {
	switch canonicalToken(s) {
	case "CRITICAL":
		return SeverityCritical
	case "MAJOR", "HIGH":
		return SeverityMajor
	case "MINOR", "MEDIUM", "LOW":
		return SeverityMinor
	default:
		return SeverityOK
	}
}

// CanonicalImageQuality defaults to clear.
func CanonicalImageQuality(s string) ImageQuality {
	q := ImageQuality(strings.ToLower(canonicalToken(s)))
	switch q {
	case QualitySlightlyBlurry, QualityVeryBlurry, QualityTooDark, QualityTooBright, QualityObstructed:
		return q
	default:
		return QualityClear
	}
}

func instances(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
