package zones

import (
	"math"
	"sort"

	"github.com/bryanwahyu/saqr/internal/domain/inspection"
)

// ZoneScore is the pass rate of one zone.
type ZoneScore struct {
	ZoneID string `json:"zoneId"`
	Name   string `json:"name"`
	NameAr string `json:"nameAr"`
	Passed int    `json:"passed"`
	Total  int    `json:"total"`
	Score  int    `json:"score"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	OK       int `json:"ok"`
}

// PriorityAction is a failing finding to act on.
type PriorityAction struct {
	ZoneID string                    `json:"zoneId"`
	Result inspection.AnalysisResult `json:"result"`
}

// ComplianceScore is a read-only aggregate over a completed result set.
type ComplianceScore struct {
	Overall         int              `json:"overall"`
	Passed          int              `json:"passed"`
	Total           int              `json:"total"`
	ByZone          []ZoneScore      `json:"byZone"`
	BySeverity      SeverityCounts   `json:"bySeverity"`
	PriorityActions []PriorityAction `json:"priorityActions"`
}

// Score aggregates results per zone. UNCERTAIN results carry no determination
// and are left out of pass/total. Zones without results are omitted.
func Score(results []inspection.AnalysisResult, a *Assignment) ComplianceScore {
	type tally struct{ passed, total int }
	perZone := make(map[string]*tally)

	var cs ComplianceScore
	actions := make([]PriorityAction, 0)
	for _, r := range results {
		zone := a.ZoneOfCode(r.SpecCode)

		switch r.Severity {
		case inspection.SeverityCritical:
			cs.BySeverity.Critical++
		case inspection.SeverityMajor:
			cs.BySeverity.Major++
		case inspection.SeverityMinor:
			cs.BySeverity.Minor++
		default:
			cs.BySeverity.OK++
		}

		if r.Result == inspection.VerdictUncertain {
			continue
		}
		t, ok := perZone[zone]
		if !ok {
			t = &tally{}
			perZone[zone] = t
		}
		t.total++
		cs.Total++
		if r.Result == inspection.VerdictPass {
			t.passed++
			cs.Passed++
		}
		if r.Result == inspection.VerdictFail {
			actions = append(actions, PriorityAction{ZoneID: zone, Result: r})
		}
	}

	cs.ByZone = make([]ZoneScore, 0, len(perZone))
	for _, z := range append(append([]Zone(nil), Catalog...), generalZone) {
		t, ok := perZone[z.ID]
		if !ok || t.total == 0 {
			continue
		}
		cs.ByZone = append(cs.ByZone, ZoneScore{
			ZoneID: z.ID,
			Name:   z.Name,
			NameAr: z.NameAr,
			Passed: t.passed,
			Total:  t.total,
			Score:  percent(t.passed, t.total),
		})
	}
	cs.Overall = percent(cs.Passed, cs.Total)

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Result.Severity.Rank() < actions[j].Result.Severity.Rank()
	})
	cs.PriorityActions = actions
	return cs
}

func percent(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(passed) / float64(total) * 100))
}
