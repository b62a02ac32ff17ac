package httpserver

import (
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
	"github.com/bryanwahyu/saqr/internal/middleware"
)

type specBody struct {
	ID            string `json:"id,omitempty" validate:"max=128"`
	Code          string `json:"code" validate:"required,max=64"`
	Requirement   string `json:"requirement" validate:"required,max=2000"`
	RequirementAr string `json:"requirementAr,omitempty" validate:"max=2000"`
	Category      string `json:"category,omitempty" validate:"max=128"`
}

type videoBody struct {
	Data            []byte    `json:"data" validate:"required"`
	MimeType        string    `json:"mimeType" validate:"omitempty,oneof=video/mp4 video/quicktime video/webm"`
	FrameTimestamps []float64 `json:"frameTimestamps" validate:"max=120"`
}

type zoneContextBody struct {
	CurrentZone    string `json:"currentZone" validate:"max=64"`
	SweepDirection string `json:"sweepDirection" validate:"max=64"`
}

// analyzeBody is the JSON form of an analysis request; binary fields are base64.
type analyzeBody struct {
	Image         []byte           `json:"image" validate:"required_without=Video"`
	ImageMimeType string           `json:"imageMimeType" validate:"omitempty,oneof=image/jpeg image/png image/webp image/heic"`
	Video         *videoBody       `json:"video"`
	Specs         []specBody       `json:"specs" validate:"required,min=1,max=200,dive"`
	Language      string           `json:"language" validate:"omitempty,oneof=en ar"`
	Mode          string           `json:"mode" validate:"omitempty,oneof=single-spec multi-spec auto-scan"`
	ZoneContext   *zoneContextBody `json:"zoneContext"`
	InspectionID  string           `json:"inspectionId" validate:"max=128"`
}

type scoreBody struct {
	Specs   []specBody                  `json:"specs" validate:"required,min=1,dive"`
	Results []inspection.AnalysisResult `json:"results"`
}

type zonesBody struct {
	Specs []specBody `json:"specs" validate:"required,min=1,dive"`
}

func toSpecs(in []specBody) []inspection.ChecklistSpec {
	out := make([]inspection.ChecklistSpec, len(in))
	for i, s := range in {
		out[i] = inspection.ChecklistSpec{
			ID:            s.ID,
			Code:          middleware.SanitizeString(s.Code),
			Requirement:   middleware.SanitizeString(s.Requirement),
			RequirementAr: middleware.SanitizeString(s.RequirementAr),
			Category:      s.Category,
		}
	}
	return out
}

func (b analyzeBody) toRequest() inspection.AnalysisRequest {
	req := inspection.AnalysisRequest{
		Image:         b.Image,
		ImageMimeType: b.ImageMimeType,
		Specs:         toSpecs(b.Specs),
		Language:      inspection.Language(b.Language),
		Mode:          inspection.Mode(b.Mode),
		InspectionID:  b.InspectionID,
	}
	if b.Video != nil {
		req.Video = &inspection.Video{
			Data:            b.Video.Data,
			MimeType:        b.Video.MimeType,
			FrameTimestamps: b.Video.FrameTimestamps,
		}
	}
	if b.ZoneContext != nil {
		req.ZoneContext = &inspection.ZoneContext{
			CurrentZone:    middleware.SanitizeString(b.ZoneContext.CurrentZone),
			SweepDirection: middleware.SanitizeString(b.ZoneContext.SweepDirection),
		}
	}
	return req
}
