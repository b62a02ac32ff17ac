package inspections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/saqr/internal/application"
	aiapp "github.com/bryanwahyu/saqr/internal/application/ai"
	"github.com/bryanwahyu/saqr/internal/domain/ai"
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
	"github.com/bryanwahyu/saqr/internal/domain/zones"
	"github.com/bryanwahyu/saqr/internal/infra/ai/prompt"
)

const persistTimeout = 10 * time.Second

// Analyzer is the provider chain as seen by this service.
type Analyzer interface {
	AnalyzeWithFallback(ctx context.Context, media ai.Media, prompt string, budget time.Duration) (aiapp.Answer, error)
}

// Recorder receives analysis metrics. A nil Recorder is allowed.
type Recorder interface {
	Analysis(mode, provider string, degraded bool)
	EvidenceUpload(err error)
}

// Service implements the inspection use-cases.
// Service is safe for concurrent use; Repo and Evidence may be nil.
type Service struct {
	Analyzer  Analyzer
	Repo      inspection.Repository
	Evidence  inspection.EvidenceStore
	Zones     *zones.Cache
	Clock     application.Clock
	Deadlines Deadlines
	Metrics   Recorder
}

// AnalyzeCommand is one analysis for a tenant.
type AnalyzeCommand struct {
	TenantID string
	Request  inspection.AnalysisRequest
}

// Analyze validates the request, runs the provider chain and normalizes the
// reply. Only an invalid request is returned as an error; every other failure
// comes back as a degraded envelope.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (inspection.Envelope, error) {
	req := cmd.Request.WithDefaults()
	if err := req.Validate(); err != nil {
		return inspection.Envelope{}, err
	}

	id := inspection.AnalysisID(uuid.New().String())
	now := s.Clock.Now()
	budget := s.Deadlines.For(req.PayloadSize())

	opts := prompt.Options{Now: now, ZoneContext: req.ZoneContext}
	if req.Video != nil {
		opts.FrameTimestamps = req.Video.FrameTimestamps
	}
	text := prompt.Build(req.Specs, req.Language, req.Mode, opts)

	var env inspection.Envelope
	ans, cause := s.Analyzer.AnalyzeWithFallback(ctx, req.Media(), text, budget)
	if cause != nil {
		env = degrade(req.Specs, cause)
	} else {
		var results []inspection.AnalysisResult
		results, cause = inspection.Normalize(ans.Text, req.Specs, ans.Scale)
		if cause != nil {
			env = degrade(req.Specs, cause)
		} else {
			env = inspection.Envelope{Results: results}
		}
		env.Provider = ans.Provider
	}
	if env.Results == nil {
		env.Results = []inspection.AnalysisResult{}
	}
	env.AnalysisID = string(id)

	ev := log.Info()
	if env.Degraded {
		ev = log.Warn().Str("failure", env.Error.Code).AnErr("cause", cause)
	}
	ev.Str("analysis_id", string(id)).
		Str("tenant", cmd.TenantID).
		Str("mode", string(req.Mode)).
		Str("provider", env.Provider).
		Int("specs", len(req.Specs)).
		Int("results", len(env.Results)).
		Dur("budget", budget).
		Msg("analysis finished")
	if s.Metrics != nil {
		s.Metrics.Analysis(string(req.Mode), env.Provider, env.Degraded)
	}

	s.record(ctx, cmd.TenantID, id, now, req, env)
	return env, nil
}

// record keeps the evidence and the envelope. Failures are logged only.
func (s *Service) record(ctx context.Context, tenant string, id inspection.AnalysisID, now time.Time, req inspection.AnalysisRequest, env inspection.Envelope) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var evidenceURL string
	if s.Evidence != nil {
		media := req.Media()
		url, err := s.Evidence.Put(ctx, EvidenceKey(tenant, id, now, media.MimeType), media.Data, media.MimeType)
		if s.Metrics != nil {
			s.Metrics.EvidenceUpload(err)
		}
		if err != nil {
			log.Error().Err(err).Str("analysis_id", string(id)).Msg("evidence upload failed")
		} else {
			evidenceURL = url
		}
	}

	if s.Repo == nil {
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("analysis_id", string(id)).Msg("encode envelope")
		return
	}
	rec := &inspection.Analysis{
		ID:           id,
		TenantID:     tenant,
		InspectionID: req.InspectionID,
		Mode:         req.Mode,
		Language:     req.Language,
		Provider:     env.Provider,
		SpecCodes:    req.SpecCodes(),
		EvidenceURL:  evidenceURL,
		Degraded:     env.Degraded,
		Result:       string(body),
		CreatedAt:    now,
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		log.Error().Err(err).Str("analysis_id", string(id)).Msg("save analysis failed")
	}
}

// Score computes the compliance score of results against the checklist.
func (s *Service) Score(specs []inspection.ChecklistSpec, results []inspection.AnalysisResult) zones.ComplianceScore {
	return zones.Score(results, s.assignment(specs))
}

// AssignZones maps every spec to its zone.
func (s *Service) AssignZones(specs []inspection.ChecklistSpec) []zones.SpecZone {
	return s.assignment(specs).List()
}

func (s *Service) assignment(specs []inspection.ChecklistSpec) *zones.Assignment {
	if s.Zones == nil {
		return zones.Assign(specs)
	}
	return s.Zones.Get(specs)
}

// ListAnalyses returns one page of stored analyses, newest first.
func (s *Service) ListAnalyses(ctx context.Context, tenant string, page, pageSize int) (inspection.PaginatedAnalyses, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	out := inspection.PaginatedAnalyses{Data: []*inspection.Analysis{}, Page: page, PageSize: pageSize}
	if s.Repo == nil {
		return out, nil
	}
	data, err := s.Repo.Paginate(ctx, tenant, page, pageSize)
	if err != nil {
		return out, err
	}
	if data != nil {
		out.Data = data
	}
	return out, nil
}

// GetAnalysis returns one stored analysis.
func (s *Service) GetAnalysis(ctx context.Context, tenant string, id inspection.AnalysisID) (*inspection.Analysis, error) {
	if s.Repo == nil {
		return nil, fmt.Errorf("%w: %s", inspection.ErrNotFound, id)
	}
	return s.Repo.Get(ctx, tenant, id)
}

// Deadlines sizes the provider budget from the payload size.
type Deadlines struct {
	Min   time.Duration
	Max   time.Duration
	PerMB time.Duration
}

// For returns clamp(Min + PerMB*MB, Min, Max).
func (d Deadlines) For(size int) time.Duration {
	if d.Min <= 0 {
		d.Min = 30 * time.Second
	}
	if d.Max <= 0 {
		d.Max = 120 * time.Second
	}
	if d.Max < d.Min {
		d.Max = d.Min
	}
	if d.PerMB < 0 {
		d.PerMB = 0
	}
	mb := float64(size) / (1 << 20)
	budget := d.Min + time.Duration(mb*float64(d.PerMB))
	if budget > d.Max {
		return d.Max
	}
	return budget
}

var extensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/heic":      "heic",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/webm":      "webm",
}

// EvidenceKey is the object key for an analysis' media:
// <tenant>/<yyyy>/<mm>/<dd>/<id>.<ext>.
func EvidenceKey(tenant string, id inspection.AnalysisID, at time.Time, mimeType string) string {
	ext, ok := extensions[mimeType]
	if !ok {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s/%s.%s", tenant, at.UTC().Format("2006/01/02"), id, ext)
}

type failureText struct {
	code    string
	verdict inspection.Verdict
	en, ar  string
}

var (
	failConfig = failureText{"CONFIGURATION_MISSING", inspection.VerdictUncertain,
		"No AI provider is configured. Review this item manually.",
		"لم يتم إعداد أي مزود للذكاء الاصطناعي. يرجى مراجعة هذا البند يدوياً."}
	failMalformed = failureText{"MALFORMED_RESPONSE", inspection.VerdictNeedsReview,
		"The AI response could not be read. Review this item manually.",
		"تعذرت قراءة استجابة الذكاء الاصطناعي. يرجى مراجعة هذا البند يدوياً."}
	failRateLimited = failureText{"RATE_LIMITED", inspection.VerdictUncertain,
		"AI providers are busy. Retry the analysis shortly.",
		"مزودو الذكاء الاصطناعي مشغولون حالياً. يرجى إعادة المحاولة بعد قليل."}
	failTimeout = failureText{"TIMEOUT", inspection.VerdictUncertain,
		"The analysis took too long. Retry with a smaller image.",
		"استغرق التحليل وقتاً طويلاً. يرجى إعادة المحاولة بصورة أصغر."}
	failAuth = failureText{"AUTH_MISSING", inspection.VerdictUncertain,
		"The AI provider rejected its credentials. Review this item manually.",
		"رفض مزود الذكاء الاصطناعي بيانات الاعتماد. يرجى مراجعة هذا البند يدوياً."}
	failTransport = failureText{"TRANSPORT", inspection.VerdictUncertain,
		"The AI provider could not be reached. Retry the analysis.",
		"تعذر الوصول إلى مزود الذكاء الاصطناعي. يرجى إعادة المحاولة."}
	failProvider = failureText{"PROVIDER_ERROR", inspection.VerdictUncertain,
		"The AI provider returned an error. Review this item manually.",
		"أعاد مزود الذكاء الاصطناعي خطأ. يرجى مراجعة هذا البند يدوياً."}
)

func classifyFailure(err error) failureText {
	if errors.Is(err, ai.ErrConfigurationMissing) {
		return failConfig
	}
	if errors.Is(err, inspection.ErrMalformedResponse) {
		return failMalformed
	}
	var pe *ai.ProviderError
	if !errors.As(err, &pe) {
		return failProvider
	}
	switch {
	case pe.Timeout():
		return failTimeout
	case pe.Kind == ai.KindRateLimited:
		return failRateLimited
	case pe.Kind == ai.KindAuthMissing:
		return failAuth
	case pe.Kind == ai.KindTransport:
		return failTransport
	default:
		return failProvider
	}
}

func degrade(specs []inspection.ChecklistSpec, err error) inspection.Envelope {
	f := classifyFailure(err)
	return inspection.DegradedEnvelope(specs, f.verdict, inspection.Failure{
		Code:        f.code,
		Reasoning:   f.en,
		ReasoningAr: f.ar,
	})
}
