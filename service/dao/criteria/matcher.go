package criteria

import (
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
)

// StageParameter is the parameter name used to filter tasks by stage.
const StageParameter = "Stage"

// Stages builds a stage filter parameter.
func Stages(stages ...model.Stage) *dao.Parameter {
	return &dao.Parameter{Name: StageParameter, Value: stages}
}

// StageValues extracts the requested stages; nil means no filter.
func StageValues(parameters []*dao.Parameter) []model.Stage {
	var ret []model.Stage
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != StageParameter {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			ret = append(ret, model.Stage(actual))
		case []string:
			for _, s := range actual {
				ret = append(ret, model.Stage(s))
			}
		case model.Stage:
			ret = append(ret, actual)
		case []model.Stage:
			ret = append(ret, actual...)
		}
	}
	return ret
}

// FilterByStage reports whether stage satisfies the stage parameters.
func FilterByStage(stage model.Stage, parameters []*dao.Parameter) bool {
	stages := StageValues(parameters)
	if len(stages) == 0 {
		return true
	}
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}
