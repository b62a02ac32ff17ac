// Package zones buckets checklist specs into physical areas of a facility and
// computes compliance scores per area.
//
// Assignment is a first-keyword-match heuristic over the zone catalog in its
// declared order, so a spec mentioning keywords of two zones lands in the
// earlier one.
package zones

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/bryanwahyu/saqr/internal/domain/inspection"
)

// General is the fallback zone for specs no keyword matches.
const General = "general"

// Zone is one physical area of an inspected facility.
type Zone struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	NameAr   string   `json:"nameAr"`
	Keywords []string `json:"-"`
}

// Catalog is the fixed, ordered zone list. Order matters: first match wins.
var Catalog = []Zone{
	{
		ID: "exterior", Name: "Exterior", NameAr: "الواجهة الخارجية",
		Keywords: []string{"exterior", "facade", "signage", "signboard", "entrance", "parking", "outdoor", "license display", "واجهة", "لوحة", "مدخل", "موقف"},
	},
	{
		ID: "main_area", Name: "Main Area", NameAr: "الصالة الرئيسية",
		Keywords: []string{"dining", "seating", "customer area", "main hall", "service counter", "display case", "صالة", "جلوس", "العملاء"},
	},
	{
		ID: "kitchen", Name: "Kitchen", NameAr: "المطبخ",
		Keywords: []string{"kitchen", "cooking", "food prep", "preparation", "stove", "oven", "grill", "fryer", "exhaust hood", "cutting board", "مطبخ", "طبخ", "تحضير", "فرن"},
	},
	{
		ID: "storage", Name: "Storage", NameAr: "المستودع",
		Keywords: []string{"storage", "store room", "warehouse", "refrigerat", "fridge", "freezer", "chiller", "cold room", "shelf", "shelving", "pallet", "تخزين", "مستودع", "ثلاجة", "مجمد"},
	},
	{
		ID: "restrooms", Name: "Restrooms", NameAr: "دورات المياه",
		Keywords: []string{"restroom", "toilet", "washroom", "bathroom", "lavatory", "hand wash", "دورة مياه", "دورات المياه", "حمام", "مغسلة"},
	},
	{
		ID: "safety", Name: "Safety", NameAr: "السلامة",
		Keywords: []string{"fire", "extinguisher", "emergency", "first aid", "exit", "alarm", "smoke detector", "sprinkler", "evacuation", "حريق", "طفاية", "طوارئ", "إسعاف", "مخرج", "إنذار"},
	},
}

var generalZone = Zone{ID: General, Name: "General", NameAr: "عام"}

var foldedKeywords = func() [][]string {
	out := make([][]string, len(Catalog))
	for i, z := range Catalog {
		for _, k := range z.Keywords {
			out[i] = append(out[i], fold(k))
		}
	}
	return out
}()

// fold is case-insensitive normalisation; a Caser is not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Lookup returns the zone with id, or the general zone.
func Lookup(id string) Zone {
	for _, z := range Catalog {
		if z.ID == id {
			return z
		}
	}
	return generalZone
}

// AssignZone returns the id of the first catalog zone whose keywords occur in
// the spec's requirement text (English or Arabic), else General.
func AssignZone(spec inspection.ChecklistSpec) string {
	text := fold(spec.Requirement + "\n" + spec.RequirementAr)
	for i, z := range Catalog {
		for _, k := range foldedKeywords[i] {
			if strings.Contains(text, k) {
				return z.ID
			}
		}
	}
	return General
}

// Assignment maps every spec of one checklist set to exactly one zone. It is
// immutable once built.
type Assignment struct {
	byKey  map[string]string
	byCode map[string]string
	order  []inspection.ChecklistSpec
}

// Assign computes the assignment for a checklist set.
func Assign(specs []inspection.ChecklistSpec) *Assignment {
	a := &Assignment{
		byKey:  make(map[string]string, len(specs)),
		byCode: make(map[string]string, len(specs)),
		order:  append([]inspection.ChecklistSpec(nil), specs...),
	}
	for _, s := range specs {
		z := AssignZone(s)
		a.byKey[s.Key()] = z
		a.byCode[s.Code] = z
	}
	return a
}

// ZoneOf returns the zone of a spec id.
func (a *Assignment) ZoneOf(specKey string) string {
	if a == nil {
		return General
	}
	if z, ok := a.byKey[specKey]; ok {
		return z
	}
	return General
}

// ZoneOfCode returns the zone of a spec code.
func (a *Assignment) ZoneOfCode(code string) string {
	if a == nil {
		return General
	}
	if z, ok := a.byCode[code]; ok {
		return z
	}
	return General
}

// SpecZone is one row of an assignment listing.
type SpecZone struct {
	SpecID   string `json:"specId"`
	SpecCode string `json:"specCode"`
	ZoneID   string `json:"zoneId"`
	ZoneName string `json:"zoneName"`
}

// List returns the assignment in the checklist's order.
func (a *Assignment) List() []SpecZone {
	out := make([]SpecZone, 0, len(a.order))
	for _, s := range a.order {
		z := Lookup(a.byKey[s.Key()])
		out = append(out, SpecZone{SpecID: s.Key(), SpecCode: s.Code, ZoneID: z.ID, ZoneName: z.Name})
	}
	return out
}

// Cache holds one Assignment per checklist set, safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Assignment
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Assignment)}
}

// Get returns the cached assignment for specs, computing it on first use.
func (c *Cache) Get(specs []inspection.ChecklistSpec) *Assignment {
	key := setKey(specs)

	c.mu.RLock()
	a, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return a
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.entries[key]; ok {
		return a
	}
	a = Assign(specs)
	c.entries[key] = a
	return a
}

// Len reports how many checklist sets are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func setKey(specs []inspection.ChecklistSpec) string {
	var b strings.Builder
	for _, s := range specs {
		b.WriteString(s.Key())
		b.WriteByte(0)
		b.WriteString(s.Requirement)
		b.WriteByte(0)
		b.WriteString(s.RequirementAr)
		b.WriteByte(0x1e)
	}
	return b.String()
}
