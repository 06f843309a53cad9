package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// MaxHashtags is how many hashtags a generated post carries at most
const MaxHashtags = 5

// PostingSlots are the UTC hours campaign posts go out at
var PostingSlots = []int{9, 13, 17}

var callsToAction = []string{
	"What's your experience with this?",
	"How do you handle this in your organization?",
	"What would you add to this list?",
	"Share your thoughts below!",
}

var baseHashtags = []string{"#LinkedIn", "#Professional", "#Business"}

var themeHashtags = map[string][]string{
	"ai":               {"#AI", "#ArtificialIntelligence"},
	"marketing":        {"#Marketing", "#DigitalMarketing"},
	"leadership":       {"#Leadership", "#Management"},
	"technology":       {"#Technology", "#Tech"},
	"entrepreneurship": {"#Entrepreneurship", "#Startup"},
}

var industryHashtags = map[string][]string{
	"Technology": {"#TechIndustry", "#SoftwareDevelopment"},
	"Marketing":  {"#MarketingStrategy", "#BrandBuilding"},
	"Finance":    {"#Finance", "#FinTech"},
	"Healthcare": {"#Healthcare", "#HealthTech"},
}

// Prompt builds the generator prompt for one post
func Prompt(theme string, audience Audience) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a LinkedIn post about %s for %s professionals.\n\n", theme, audience.PrimaryIndustry())
	b.WriteString("The post should be engaging and professional, include actionable insights, ")
	b.WriteString("use a conversational tone and stay under 1300 characters.")
	if len(audience.JobTitles) > 0 {
		fmt.Fprintf(&b, "\nWrite for: %s.", strings.Join(audience.JobTitles, ", "))
	}
	return b.String()
}

// ImagePrompt builds the prompt for a post illustration
func ImagePrompt(theme string, audience Audience) string {
	return fmt.Sprintf("%s professional LinkedIn post image, %s", theme, audience.PrimaryIndustry())
}

// Optimize appends a call to action when the text asks nothing of the reader.
// seq picks the call to action so consecutive posts differ.
func Optimize(content string, seq int) string {
	content = strings.TrimSpace(content)
	if strings.Contains(content, "?") {
		return content
	}
	return content + "\n\n" + callsToAction[seq%len(callsToAction)]
}

// Hashtags returns base, theme and industry hashtags without duplicates, capped at MaxHashtags
func Hashtags(theme string, audience Audience) []string {
	var specific []string

	words := strings.FieldsFunc(strings.ToLower(theme), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		specific = append(specific, themeHashtags[w]...)
	}
	for _, industry := range audience.Industries {
		specific = append(specific, industryHashtags[industry]...)
	}

	seen := make(map[string]struct{}, len(specific)+len(baseHashtags))
	out := make([]string, 0, MaxHashtags)
	// theme and industry tags first, the generic base tags fill what is left
	for _, t := range append(specific, baseHashtags...) {
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if len(out) == MaxHashtags {
			break
		}
	}
	return out
}

// NextSlots returns n posting times after the given time, at most perDay per UTC day.
// When occupied is true, slots of after's day up to after are treated as taken.
func NextSlots(after time.Time, occupied bool, n, perDay int) []time.Time {
	if perDay < 1 {
		perDay = 1
	}
	if perDay > len(PostingSlots) {
		perDay = len(PostingSlots)
	}

	after = after.UTC()
	y, m, d := after.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	used := 0
	if occupied {
		for _, h := range PostingSlots {
			if !day.Add(time.Duration(h) * time.Hour).After(after) {
				used++
			}
		}
	}

	slots := make([]time.Time, 0, n)
	for len(slots) < n {
		for _, h := range PostingSlots {
			if len(slots) == n || used >= perDay {
				break
			}
			at := day.Add(time.Duration(h) * time.Hour)
			if !at.After(after) {
				continue
			}
			slots = append(slots, at)
			used++
		}
		day = day.AddDate(0, 0, 1)
		used = 0
	}
	return slots
}
