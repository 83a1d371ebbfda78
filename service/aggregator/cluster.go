package aggregator

import (
	"sort"
	"strings"
	"unicode"

	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/investigator"
)

// GeneralTheme collects findings close to no focus point.
const GeneralTheme = "General findings"

var typeLabels = map[model.SourceType]string{
	model.SourceWeb:      "Web sources",
	model.SourceAcademic: "Academic research",
	model.SourceCode:     "Code and implementations",
}

// Clusterer groups ranked findings into themes. Every finding must land in
// exactly one cluster.
type Clusterer interface {
	Cluster(brief *model.Brief, findings []model.Finding) []model.EvidenceCluster
}

// FocusClusterer assigns each finding to the focus point sharing most tokens
// with it, then reshapes the result towards [Min, Max] clusters: too few are
// split by source type, too many are folded into the general theme.
type FocusClusterer struct {
	Min int
	Max int
}

// DefaultClusterer targets 3 to 6 clusters.
func DefaultClusterer() *FocusClusterer {
	return &FocusClusterer{Min: 3, Max: 6}
}

type group struct {
	theme    string
	findings []model.Finding
}

func (c *FocusClusterer) Cluster(brief *model.Brief, findings []model.Finding) []model.EvidenceCluster {
	if len(findings) == 0 {
		return nil
	}
	var groups []*group
	var focusTokens []map[string]bool
	for _, focus := range brief.FocusPoints {
		focus = strings.TrimSpace(focus)
		if focus == "" {
			continue
		}
		groups = append(groups, &group{theme: capitalize(focus)})
		focusTokens = append(focusTokens, investigator.Tokens(focus))
	}
	general := &group{theme: GeneralTheme}
	for _, f := range findings {
		tokens := investigator.Tokens(f.Title + " " + f.Snippet)
		best, bestScore := -1, 0.0
		for i, focus := range focusTokens {
			if score := investigator.Overlap(focus, tokens); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			general.findings = append(general.findings, f)
			continue
		}
		groups[best].findings = append(groups[best].findings, f)
	}
	groups = append(groups, general)
	groups = nonEmpty(groups)
	groups = c.fold(groups)
	groups = c.split(groups)

	ret := make([]model.EvidenceCluster, 0, len(groups))
	for _, g := range groups {
		cluster := model.EvidenceCluster{Theme: g.theme}
		for _, f := range g.findings {
			cluster.FindingIDs = append(cluster.FindingIDs, f.ID)
		}
		ret = append(ret, cluster)
	}
	return ret
}

// fold keeps the Max-1 largest focus groups and moves the rest into the
// general theme.
func (c *FocusClusterer) fold(groups []*group) []*group {
	if c.Max <= 0 || len(groups) <= c.Max {
		return groups
	}
	var focus []*group
	general := &group{theme: GeneralTheme}
	for _, g := range groups {
		if g.theme == GeneralTheme {
			general.findings = append(general.findings, g.findings...)
			continue
		}
		focus = append(focus, g)
	}
	sort.SliceStable(focus, func(i, j int) bool { return len(focus[i].findings) > len(focus[j].findings) })
	keep := c.Max - 1
	for _, g := range focus[keep:] {
		general.findings = append(general.findings, g.findings...)
	}
	model.SortFindings(general.findings)
	return append(focus[:keep], general)
}

// split divides the largest mixed-type group by source type until Min is
// reached or no group has more than one type.
func (c *FocusClusterer) split(groups []*group) []*group {
	for len(groups) < c.Min {
		index, parts := -1, 0
		for i, g := range groups {
			if n := len(byType(g.findings)); n > 1 && (index < 0 || len(g.findings) > len(groups[index].findings)) {
				index, parts = i, n
			}
		}
		if index < 0 || parts < 2 {
			return groups
		}
		target := groups[index]
		var replacement []*group
		typed := byType(target.findings)
		for _, t := range model.SourceTypes {
			members, ok := typed[t]
			if !ok {
				continue
			}
			theme := typeLabels[t]
			if target.theme != GeneralTheme {
				theme = target.theme + ": " + strings.ToLower(theme)
			}
			replacement = append(replacement, &group{theme: theme, findings: members})
		}
		groups = append(groups[:index], append(replacement, groups[index+1:]...)...)
	}
	return groups
}

func byType(findings []model.Finding) map[model.SourceType][]model.Finding {
	ret := map[model.SourceType][]model.Finding{}
	for _, f := range findings {
		ret[f.Type] = append(ret[f.Type], f)
	}
	return ret
}

func nonEmpty(groups []*group) []*group {
	ret := groups[:0]
	for _, g := range groups {
		if len(g.findings) > 0 {
			ret = append(ret, g)
		}
	}
	return ret
}

func capitalize(text string) string {
	for i, r := range text {
		return string(unicode.ToUpper(r)) + text[i+len(string(r)):]
	}
	return text
}
