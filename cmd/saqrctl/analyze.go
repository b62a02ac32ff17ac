package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/saqr/internal/application"
	aiapp "github.com/bryanwahyu/saqr/internal/application/ai"
	appinspections "github.com/bryanwahyu/saqr/internal/application/inspections"
	"github.com/bryanwahyu/saqr/internal/bootstrap"
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
	"github.com/bryanwahyu/saqr/internal/domain/zones"
)

var (
	analyzeImage string
	analyzeSpecs []string
	analyzeMode  string
	analyzeLang  string
	analyzeZone  string
	analyzeSweep string
	analyzeScore bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a local photo or video against checklist specs",
	Long: `Analyze a local photo or video against checklist specs.

The media type is detected from the file content. Videos are only sent to
providers that accept video input.

Examples:
  saqrctl analyze --image kitchen.jpg --spec "KT-01=Exhaust hood is clean"
  saqrctl analyze --image store.jpg --spec "ST-02=Freezer below -18C" --spec "FL-05=Extinguisher tagged" --lang ar
  saqrctl analyze --image walk.mp4 --mode auto-scan --zone kitchen --sweep "left to right" --spec ...`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeImage, "image", "i", "", "path to a photo or video")
	f.StringArrayVarP(&analyzeSpecs, "spec", "s", nil, "checklist spec as CODE=requirement (repeatable)")
	f.StringVar(&analyzeMode, "mode", "", "single-spec, multi-spec or auto-scan")
	f.StringVar(&analyzeLang, "lang", "en", "reasoning language (en or ar)")
	f.StringVar(&analyzeZone, "zone", "", "current zone for auto-scan")
	f.StringVar(&analyzeSweep, "sweep", "", "camera sweep direction for auto-scan")
	f.BoolVar(&analyzeScore, "score", false, "also print the compliance score")
	_ = analyzeCmd.MarkFlagRequired("image")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetupLogger(cfg, cmd.ErrOrStderr())

	specs, err := parseSpecs(analyzeSpecs)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(analyzeImage)
	if err != nil {
		return err
	}
	if limit := cfg.Analysis.MaxImageMB << 20; len(data) > limit {
		return fmt.Errorf("%s is %d bytes, limit is %d MB", analyzeImage, len(data), cfg.Analysis.MaxImageMB)
	}

	req := inspection.AnalysisRequest{
		Specs:    specs,
		Language: inspection.Language(analyzeLang),
		Mode:     inspection.Mode(analyzeMode),
	}
	if err := attachMedia(&req, data); err != nil {
		return err
	}
	if analyzeZone != "" || analyzeSweep != "" {
		req.ZoneContext = &inspection.ZoneContext{CurrentZone: analyzeZone, SweepDirection: analyzeSweep}
	}

	svc := &appinspections.Service{
		Analyzer: aiapp.NewOrchestrator(bootstrap.Registry(cfg), nil),
		Zones:    zones.NewCache(),
		Clock:    application.SystemClock{},
		Deadlines: appinspections.Deadlines{
			Min:   cfg.Analysis.MinDeadline,
			Max:   cfg.Analysis.MaxDeadline,
			PerMB: cfg.Analysis.DeadlinePerMB,
		},
	}
	env, err := svc.Analyze(cmd.Context(), appinspections.AnalyzeCommand{TenantID: "local", Request: req})
	if err != nil {
		return err
	}

	out := map[string]any{"envelope": env}
	if analyzeScore {
		out["score"] = svc.Score(specs, env.Results)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// attachMedia sets the image or video payload from sniffed file content.
func attachMedia(req *inspection.AnalysisRequest, data []byte) error {
	mt := mimetype.Detect(data)
	base, _, _ := strings.Cut(mt.String(), ";")
	switch {
	case strings.HasPrefix(base, "image/"):
		req.Image = data
		req.ImageMimeType = base
	case strings.HasPrefix(base, "video/"):
		req.Video = &inspection.Video{Data: data, MimeType: base}
	default:
		return fmt.Errorf("unsupported media type %s", base)
	}
	return nil
}
