package investigator

import (
	"math"
	"sort"

	"github.com/viant/deepresearch/model"
)

// Split is a per source type share of the total budget.
type Split map[model.SourceType]float64

// DefaultSplit is used when no split is configured.
func DefaultSplit() Split {
	return Split{model.SourceWeb: 0.4, model.SourceAcademic: 0.3, model.SourceCode: 0.3}
}

// goalWeights boosts the type that best serves a goal.
var goalWeights = map[model.GoalType]map[model.SourceType]float64{
	model.GoalImplementationGuide: {model.SourceCode: 2},
	model.GoalLiteratureReview:    {model.SourceAcademic: 2},
	model.GoalComparison:          {model.SourceWeb: 1.5},
}

const priorityWeight = 1.5

// Budgets divides total across source types. Base shares are multiplied by
// goal and priority weights, excluded types get nothing, and the result is
// rounded by largest remainder so the parts always sum to total.
func Budgets(total int, brief *model.Brief, base Split) map[model.SourceType]int {
	if len(base) == 0 {
		base = DefaultSplit()
	}
	ret := make(map[model.SourceType]int, len(model.SourceTypes))
	weights := make(map[model.SourceType]float64, len(model.SourceTypes))
	sum := 0.0
	for _, t := range model.SourceTypes {
		ret[t] = 0
		if brief.Excludes(t) {
			continue
		}
		w := base[t]
		if boost, ok := goalWeights[brief.Goal][t]; ok {
			w *= boost
		}
		if brief.Prioritizes(t) {
			w *= priorityWeight
		}
		weights[t] = w
		sum += w
	}
	if total <= 0 || sum == 0 {
		return ret
	}
	type remainder struct {
		t    model.SourceType
		frac float64
	}
	var remainders []remainder
	assigned := 0
	for _, t := range model.SourceTypes {
		w, ok := weights[t]
		if !ok || w == 0 {
			continue
		}
		quota := float64(total) * w / sum
		floor := math.Floor(quota)
		ret[t] = int(floor)
		assigned += int(floor)
		remainders = append(remainders, remainder{t: t, frac: quota - floor})
	}
	sort.SliceStable(remainders, func(i, j int) bool {
		return remainders[i].frac > remainders[j].frac
	})
	for i := 0; assigned < total; i++ {
		ret[remainders[i%len(remainders)].t]++
		assigned++
	}
	return ret
}
