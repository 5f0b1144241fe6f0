package skills

import (
	"encoding/xml"
	"strings"
)

// Active returns the union of always-flagged skills and any explicitly
// requested by name, in the order they were discovered.
func Active(all []Skill, requested []string) []Skill {
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[name] = true
	}
	var out []Skill
	for _, s := range all {
		if s.Always || want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// RenderActive renders each active skill as "### Skill: {name}\n\n{body}",
// joined with a blank line.
func RenderActive(active []Skill) string {
	sections := make([]string, 0, len(active))
	for _, s := range active {
		sections = append(sections, "### Skill: "+s.Name+"\n\n"+s.Body)
	}
	return strings.Join(sections, "\n\n")
}

type skillXML struct {
	XMLName     xml.Name `xml:"skill"`
	Available   bool     `xml:"available,attr"`
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
	Location    string   `xml:"location"`
}

// RenderSummary lists every discovered skill (active or not) as XML.
func RenderSummary(all []Skill) string {
	lines := make([]string, 0, len(all))
	for _, s := range all {
		entry := skillXML{Available: true, Name: s.Name, Description: s.Description, Location: s.Location}
		data, err := xml.Marshal(entry)
		if err != nil {
			continue
		}
		lines = append(lines, string(data))
	}
	return strings.Join(lines, "\n")
}
