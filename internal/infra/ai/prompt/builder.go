package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bryanwahyu/saqr/internal/domain/inspection"
)

// Temperature limits for food-safety specs, in degrees Celsius.
const (
	ColdHoldingMaxC   = 5
	FrozenHoldingMaxC = -18
	HotHoldingMinC    = 63
)

// Options carries the request context that is not part of the checklist.
type Options struct {
	Now             time.Time
	ZoneContext     *inspection.ZoneContext
	FrameTimestamps []float64
}

const resultSchema = `{
  "results": [
    {
      "specCode": "<code from the list>",
      "found": true,
      "confidence": 0,
      "result": "PASS|FAIL|NEEDS_REVIEW",
      "severity": "CRITICAL|MAJOR|MINOR|OK",
      "finding": "<what you observed, English>",
      "findingAr": "<what you observed, Arabic>",
      "instancesVisible": 0,
      "recommendation": "<corrective action, English>",
      "recommendationAr": "<corrective action, Arabic>",
      "imageQuality": "clear|slightly_blurry|very_blurry|too_dark|too_bright|obstructed",
      "evidenceValid": true
    }
  ]
}`

// Build returns the provider prompt for specs in the given language and mode.
// It is deterministic for identical inputs.
func Build(specs []inspection.ChecklistSpec, lang inspection.Language, mode inspection.Mode, opts Options) string {
	var b strings.Builder

	b.WriteString("You are a certified municipal compliance inspector reviewing field evidence from a facility inspection.\n")
	if len(opts.FrameTimestamps) > 0 {
		b.WriteString("The evidence is a video clip. Frames were extracted at these timestamps (seconds): ")
		b.WriteString(formatTimestamps(opts.FrameTimestamps))
		b.WriteString(". Judge what is visible across the clip.\n")
	} else {
		b.WriteString("The evidence is a single photo.\n")
	}
	fmt.Fprintf(&b, "Today's date is %s. Treat any expiry, inspection or maintenance date before today as expired.\n", opts.Now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Temperature limits: cold holding below %d°C, frozen storage below %d°C, hot holding above %d°C.\n",
		ColdHoldingMaxC, FrozenHoldingMaxC, HotHoldingMinC)

	switch mode {
	case inspection.ModeSingleSpec:
		writeSingle(&b, specs[0])
	case inspection.ModeAutoScan:
		writeZoneContext(&b, opts.ZoneContext)
		writeMulti(&b, specs)
	default:
		writeMulti(&b, specs)
	}

	b.WriteString("\nRate severity as CRITICAL (immediate risk to health or life), MAJOR (clear violation), MINOR (cosmetic or administrative) or OK (compliant).\n")
	b.WriteString("Report confidence as a number from 0 to 100.\n")
	b.WriteString("Set evidenceValid to false when the image would not be accepted as proof by a regulator.\n")
	writeLanguage(&b, lang)

	b.WriteString("\nRespond with one JSON object only, no prose and no markdown code fences, following this schema:\n")
	b.WriteString(resultSchema)
	b.WriteString("\n")
	return b.String()
}

func writeSingle(b *strings.Builder, s inspection.ChecklistSpec) {
	b.WriteString("\nCheck this single requirement against the evidence:\n")
	b.WriteString(specLine(s))
	b.WriteString("\n")
	b.WriteString("Always return exactly one result for this code. If the subject is not visible set found to false.\n")
}

func writeMulti(b *strings.Builder, specs []inspection.ChecklistSpec) {
	b.WriteString("\nChecklist requirements (code: requirement):\n")
	for _, s := range specs {
		b.WriteString(specLine(s))
		b.WriteString("\n")
	}
	b.WriteString("Only return results for requirements where the evidence clearly shows the subject. Skip the rest.\n")
	b.WriteString("All visible instances must comply: if 3 of 4 fire extinguishers are valid, the requirement FAILS. Report the number of instances you counted in instancesVisible.\n")
}

func writeZoneContext(b *strings.Builder, zc *inspection.ZoneContext) {
	zone, sweep := "unspecified", "unspecified"
	if zc != nil {
		if zc.CurrentZone != "" {
			zone = zc.CurrentZone
		}
		if zc.SweepDirection != "" {
			sweep = zc.SweepDirection
		}
	}
	fmt.Fprintf(b, "\nThis frame comes from a continuous walk-through scan. Current zone: %s. Sweep direction: %s.\n", zone, sweep)
	b.WriteString("The view may be partial; do not fail a requirement only because part of it is out of frame.\n")
}

func writeLanguage(b *strings.Builder, lang inspection.Language) {
	b.WriteString("Write finding and recommendation in English and findingAr and recommendationAr in Arabic.\n")
	if lang == inspection.LanguageArabic {
		b.WriteString("The inspector reads Arabic: make findingAr and recommendationAr the most complete.\n")
	}
}

func specLine(s inspection.ChecklistSpec) string {
	line := s.Code + ": " + s.Requirement
	if s.RequirementAr != "" {
		line += " / " + s.RequirementAr
	}
	return line
}

func formatTimestamps(ts []float64) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strconv.FormatFloat(t, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}
