package entity

import "sort"

// Category is a named audience preset
type Category string

const (
	CategoryBigClients        Category = "big_clients"
	CategoryCMOs              Category = "cmos"
	CategoryStartupFounders   Category = "startup_founders"
	CategoryCTOs              Category = "ctos"
	CategorySoftwareEngineers Category = "software_engineers"
	CategoryInvestors         Category = "investors"
)

var categoryCriteria = map[Category]TargetCriteria{
	CategoryBigClients: {
		JobTitles:    []string{"CEO", "CTO", "VP", "Director", "Head of"},
		CompanySizes: []string{"1001-5000", "5001-10000", "10001+"},
		Industries:   []string{"Technology", "Finance", "Healthcare", "Manufacturing"},
	},
	CategoryCMOs: {
		JobTitles:  []string{"CMO", "Chief Marketing Officer", "VP Marketing", "Marketing Director"},
		Industries: []string{"Technology", "SaaS", "E-commerce"},
	},
	CategoryStartupFounders: {
		JobTitles:    []string{"Founder", "Co-Founder", "CEO"},
		CompanySizes: []string{"1-10", "11-50", "51-200"},
		Keywords:     []string{"startup", "early stage"},
	},
	CategoryCTOs: {
		JobTitles:  []string{"CTO", "Chief Technology Officer", "VP Engineering"},
		Industries: []string{"Technology", "SaaS"},
	},
	CategorySoftwareEngineers: {
		JobTitles:  []string{"Software Engineer", "Senior Software Engineer", "Staff Engineer", "Tech Lead"},
		Industries: []string{"Technology"},
	},
	CategoryInvestors: {
		JobTitles:  []string{"Partner", "Managing Partner", "Angel Investor", "Venture Capitalist"},
		Industries: []string{"Venture Capital", "Private Equity"},
	},
}

// CriteriaForCategory returns a copy of the preset criteria for a category
func CriteriaForCategory(c Category) (TargetCriteria, error) {
	preset, ok := categoryCriteria[c]
	if !ok {
		return TargetCriteria{}, ErrUnknownCategory
	}
	return TargetCriteria{
		JobTitles:    append([]string(nil), preset.JobTitles...),
		Industries:   append([]string(nil), preset.Industries...),
		CompanySizes: append([]string(nil), preset.CompanySizes...),
		Keywords:     append([]string(nil), preset.Keywords...),
		Locations:    append([]string(nil), preset.Locations...),
	}, nil
}

// Categories returns every known category, sorted
func Categories() []Category {
	out := make([]Category, 0, len(categoryCriteria))
	for c := range categoryCriteria {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
