package app

// Sport is one entry of the fixed sport catalog.
type Sport struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var sportCatalog = []Sport{
	{ID: "running", Name: "跑步", Icon: "🏃"},
	{ID: "cycling", Name: "自行車", Icon: "🚴"},
	{ID: "swimming", Name: "游泳", Icon: "🏊"},
	{ID: "hiking", Name: "健行", Icon: "🥾"},
	{ID: "gym", Name: "健身房", Icon: "💪"},
	{ID: "basketball", Name: "籃球", Icon: "🏀"},
	{ID: "tennis", Name: "網球", Icon: "🎾"},
	{ID: "yoga", Name: "瑜伽", Icon: "🧘"},
	{ID: "dancing", Name: "舞蹈", Icon: "💃"},
	{ID: "martial_arts", Name: "武術", Icon: "🥋"},
}

// Sports returns a copy of the catalog in display order.
func Sports() []Sport {
	out := make([]Sport, len(sportCatalog))
	copy(out, sportCatalog)
	return out
}

// LookupSport finds a catalog entry by id.
func LookupSport(id string) (Sport, bool) {
	for _, s := range sportCatalog {
		if s.ID == id {
			return s, true
		}
	}
	return Sport{}, false
}
