package inspection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
)

// ErrInvalidRequest marks structurally invalid analysis requests. They are
// rejected before any provider is called.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Language enum
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// Mode enum
type Mode string

const (
	ModeSingleSpec Mode = "single-spec"
	ModeMultiSpec  Mode = "multi-spec"
	ModeAutoScan   Mode = "auto-scan"
)

// Verdict enum
type Verdict string

const (
	VerdictPass        Verdict = "PASS"
	VerdictFail        Verdict = "FAIL"
	VerdictNeedsReview Verdict = "NEEDS_REVIEW"
	VerdictUncertain   Verdict = "UNCERTAIN"
)

// Severity enum, ordered most to least severe.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
	SeverityOK       Severity = "OK"
)

// Rank orders severities for prioritisation: CRITICAL=0 .. OK=3.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// ImageQuality enum
type ImageQuality string

const (
	QualityClear          ImageQuality = "clear"
	QualitySlightlyBlurry ImageQuality = "slightly_blurry"
	QualityVeryBlurry     ImageQuality = "very_blurry"
	QualityTooDark        ImageQuality = "too_dark"
	QualityTooBright      ImageQuality = "too_bright"
	QualityObstructed     ImageQuality = "obstructed"
)

// ChecklistSpec is a single regulatory requirement from the checklist catalog.
type ChecklistSpec struct {
	ID            string `json:"id,omitempty"`
	Code          string `json:"code"`
	Requirement   string `json:"requirement"`
	RequirementAr string `json:"requirementAr,omitempty"`
	Category      string `json:"category,omitempty"`
}

// Key is the identity used for zone assignment; falls back to Code.
func (s ChecklistSpec) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Code
}

// ZoneContext describes where the inspector is during a continuous scan.
type ZoneContext struct {
	CurrentZone    string `json:"currentZone"`
	SweepDirection string `json:"sweepDirection"`
}

// Video is a clip plus the timestamps (seconds) of the frames extracted from it.
type Video struct {
	Data            []byte    `json:"data"`
	MimeType        string    `json:"mimeType"`
	FrameTimestamps []float64 `json:"frameTimestamps,omitempty"`
}

// AnalysisRequest is one unit of work for the orchestrator.
type AnalysisRequest struct {
	Image         []byte          `json:"image,omitempty"`
	ImageMimeType string          `json:"imageMimeType,omitempty"`
	Video         *Video          `json:"video,omitempty"`
	Specs         []ChecklistSpec `json:"specs"`
	Language      Language        `json:"language"`
	Mode          Mode            `json:"mode"`
	ZoneContext   *ZoneContext    `json:"zoneContext,omitempty"`
	InspectionID  string          `json:"inspectionId,omitempty"`
}

// WithDefaults fills the optional selectors.
func (r AnalysisRequest) WithDefaults() AnalysisRequest {
	if r.Language == "" {
		r.Language = LanguageEnglish
	}
	if r.Mode == "" {
		if len(r.Specs) == 1 {
			r.Mode = ModeSingleSpec
		} else {
			r.Mode = ModeMultiSpec
		}
	}
	if r.ImageMimeType == "" && len(r.Image) > 0 {
		r.ImageMimeType = "image/jpeg"
	}
	if r.Video != nil && r.Video.MimeType == "" {
		r.Video.MimeType = "video/mp4"
	}
	return r
}

// Validate checks the structural invariants of the request.
func (r AnalysisRequest) Validate() error {
	if r.Video == nil && len(r.Image) == 0 {
		return fmt.Errorf("%w: image payload is empty", ErrInvalidRequest)
	}
	if r.Video != nil && len(r.Video.Data) == 0 {
		return fmt.Errorf("%w: video payload is empty", ErrInvalidRequest)
	}
	if len(r.Specs) == 0 {
		return fmt.Errorf("%w: at least one spec is required", ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(r.Specs))
	for i, s := range r.Specs {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			return fmt.Errorf("%w: spec %d has no code", ErrInvalidRequest, i)
		}
		// results are matched to specs case-insensitively
		key := strings.ToUpper(code)
		if seen[key] {
			return fmt.Errorf("%w: duplicate spec code %s", ErrInvalidRequest, code)
		}
		seen[key] = true
	}
	switch r.Language {
	case LanguageEnglish, LanguageArabic:
	default:
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, r.Language)
	}
	switch r.Mode {
	case ModeSingleSpec:
		if len(r.Specs) != 1 {
			return fmt.Errorf("%w: single-spec mode takes exactly one spec, got %d", ErrInvalidRequest, len(r.Specs))
		}
	case ModeMultiSpec, ModeAutoScan:
	default:
		return fmt.Errorf("%w: unsupported mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Media returns the payload handed to providers.
func (r AnalysisRequest) Media() ai.Media {
	if r.Video != nil {
		return ai.Media{Data: r.Video.Data, MimeType: r.Video.MimeType}
	}
	return ai.Media{Data: r.Image, MimeType: r.ImageMimeType}
}

// PayloadSize is the size in bytes of the evidence payload.
func (r AnalysisRequest) PayloadSize() int {
	if r.Video != nil {
		return len(r.Video.Data)
	}
	return len(r.Image)
}

// SpecCodes lists the request's spec codes in order.
func (r AnalysisRequest) SpecCodes() []string {
	out := make([]string, 0, len(r.Specs))
	for _, s := range r.Specs {
		out = append(out, s.Code)
	}
	return out
}

// AnalysisResult is the verdict for one spec. Values are never mutated after
// the normalizer creates them.
type AnalysisResult struct {
	SpecCode         string       `json:"specCode"`
	Result           Verdict      `json:"result"`
	Confidence       float64      `json:"confidence"`
	Severity         Severity     `json:"severity"`
	Finding          string       `json:"finding"`
	FindingAr        string       `json:"findingAr"`
	InstancesVisible *int         `json:"instancesVisible,omitempty"`
	Recommendation   string       `json:"recommendation,omitempty"`
	RecommendationAr string       `json:"recommendationAr,omitempty"`
	ImageQuality     ImageQuality `json:"imageQuality"`
	EvidenceValid    bool         `json:"evidenceValid"`
	Reasoning        string       `json:"reasoning,omitempty"`
	ReasoningAr      string       `json:"reasoningAr,omitempty"`
}

// Failure explains why an envelope is degraded.
type Failure struct {
	Code        string `json:"code"`
	Reasoning   string `json:"reasoning"`
	ReasoningAr string `json:"reasoningAr"`
}

// Envelope is what the analysis boundary always returns.
type Envelope struct {
	AnalysisID string           `json:"analysisId,omitempty"`
	Provider   string           `json:"provider,omitempty"`
	Degraded   bool             `json:"degraded"`
	Error      *Failure         `json:"error,omitempty"`
	Results    []AnalysisResult `json:"results"`
}

// DegradedEnvelope builds a well-formed envelope with one zero-confidence
// result per requested spec.
func DegradedEnvelope(specs []ChecklistSpec, verdict Verdict, f Failure) Envelope {
	results := make([]AnalysisResult, 0, len(specs))
	for _, s := range specs {
		results = append(results, AnalysisResult{
			SpecCode:      s.Code,
			Result:        verdict,
			Confidence:    0,
			Severity:      SeverityOK,
			ImageQuality:  QualityClear,
			EvidenceValid: false,
			Reasoning:     f.Reasoning,
			ReasoningAr:   f.ReasoningAr,
		})
	}
	return Envelope{Degraded: true, Error: &f, Results: results}
}
