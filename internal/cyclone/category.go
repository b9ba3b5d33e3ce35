package cyclone

import (
	"encoding/json"
	"fmt"
)

// Category is the discrete classification of a detection, ordered by severity.
type Category int

const (
	CategoryNone Category = iota
	CategoryTropicalDepression
	CategoryTropicalStorm
	CategoryCyclone
)

var categoryLabels = map[Category]string{
	CategoryNone:               "None",
	CategoryTropicalDepression: "Tropical Depression",
	CategoryTropicalStorm:      "Tropical Storm",
	CategoryCyclone:            "Cyclone",
}

func (c Category) String() string {
	if s, ok := categoryLabels[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for k, v := range categoryLabels {
		if v == s {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", s)
}

// classify maps the number of primary conditions met and the severity score
// to a category. Gusts never count towards primaryMet.
func classify(primaryMet int, score float64) Category {
	switch {
	case primaryMet >= 3:
		return CategoryCyclone
	case primaryMet == 2 || score > 0.5:
		return CategoryTropicalStorm
	case primaryMet == 1 || score > 0.3:
		return CategoryTropicalDepression
	default:
		return CategoryNone
	}
}
