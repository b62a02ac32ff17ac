package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() AnalysisRequest {
	return AnalysisRequest{
		Image: []byte{0xff, 0xd8, 0xff},
		Specs: []ChecklistSpec{{Code: "FL-05", Requirement: "Fire extinguisher present and tagged"}},
	}
}

func TestAnalysisRequest_WithDefaults(t *testing.T) {
	r := validRequest().WithDefaults()
	assert.Equal(t, LanguageEnglish, r.Language)
	assert.Equal(t, ModeSingleSpec, r.Mode)
	assert.Equal(t, "image/jpeg", r.ImageMimeType)

	r = validRequest()
	r.Specs = append(r.Specs, ChecklistSpec{Code: "KT-01"})
	assert.Equal(t, ModeMultiSpec, r.WithDefaults().Mode)
}

func TestAnalysisRequest_Validate(t *testing.T) {
	require.NoError(t, validRequest().WithDefaults().Validate())

	cases := map[string]func(*AnalysisRequest){
		"no image":        func(r *AnalysisRequest) { r.Image = nil },
		"no specs":        func(r *AnalysisRequest) { r.Specs = nil },
		"blank code":      func(r *AnalysisRequest) { r.Specs[0].Code = " " },
		"bad language":    func(r *AnalysisRequest) { r.Language = "fr" },
		"bad mode":        func(r *AnalysisRequest) { r.Mode = "sweep" },
		"empty video":     func(r *AnalysisRequest) { r.Video = &Video{MimeType: "video/mp4"} },
		"single-spec x2": func(r *AnalysisRequest) {
			r.Specs = append(r.Specs, ChecklistSpec{Code: "KT-01"})
			r.Mode = ModeSingleSpec
		},
		"duplicate codes": func(r *AnalysisRequest) {
			r.Specs = append(r.Specs, ChecklistSpec{Code: "FL-05"})
			r.Mode = ModeMultiSpec
		},
		"duplicate codes by case": func(r *AnalysisRequest) {
			r.Specs = append(r.Specs, ChecklistSpec{Code: "fl-05"})
			r.Mode = ModeMultiSpec
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRequest().WithDefaults()
			mutate(&r)
			assert.ErrorIs(t, r.Validate(), ErrInvalidRequest)
		})
	}
}

func TestAnalysisRequest_VideoMedia(t *testing.T) {
	r := validRequest()
	r.Image = nil
	r.Video = &Video{Data: []byte("clip"), FrameTimestamps: []float64{0.5, 1.5}}
	r = r.WithDefaults()

	require.NoError(t, r.Validate())
	m := r.Media()
	assert.True(t, m.IsVideo())
	assert.Equal(t, 4, r.PayloadSize())
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityMajor.Rank())
	assert.Less(t, SeverityMajor.Rank(), SeverityMinor.Rank())
	assert.Less(t, SeverityMinor.Rank(), SeverityOK.Rank())
}

func TestDegradedEnvelope(t *testing.T) {
	specs := []ChecklistSpec{{Code: "A"}, {Code: "B"}}
	env := DegradedEnvelope(specs, VerdictUncertain, Failure{Code: "TIMEOUT", Reasoning: "timed out", ReasoningAr: "انتهت المهلة"})

	assert.True(t, env.Degraded)
	require.Len(t, env.Results, 2)
	for _, r := range env.Results {
		assert.Equal(t, VerdictUncertain, r.Result)
		assert.Zero(t, r.Confidence)
		assert.Equal(t, "timed out", r.Reasoning)
		assert.Equal(t, "انتهت المهلة", r.ReasoningAr)
	}
}
