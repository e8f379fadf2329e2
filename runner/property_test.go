package runner

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/internal/testutil"
	"github.com/lucasXiaofan/med-deepresearch/model"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

func TestRun_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a tool-free conversation completes in exactly one turn", prop.ForAll(
		func(maxTurns int) bool {
			m := model.NewScriptedModel(model.Step{Response: model.TextResponse("answer")})
			res, err := New(m, func(o *Options) { o.MaxTurns = maxTurns }).
				Run(context.Background(), Input{Message: "question"})
			return err == nil &&
				res.Outcome == core.OutcomeCompleted &&
				res.Turns == 1 &&
				m.Calls() == 1 &&
				len(res.Trajectory.Turns) == 1
		},
		gen.IntRange(1, 40),
	))

	properties.Property("an always-calling model never runs past the budget", prop.ForAll(
		func(maxTurns int) bool {
			var executed atomic.Int64
			reg, err := tool.NewRegistry(testutil.StaticTool("query", "more", &executed))
			if err != nil {
				return false
			}
			m := testutil.LoopingModel("query")
			res, err := New(m, func(o *Options) {
				o.MaxTurns = maxTurns
				o.Tools = reg
			}).Run(context.Background(), Input{Message: "question"})

			terminal := res != nil && (res.Outcome == core.OutcomeSynthesized || res.Outcome == core.OutcomeFailed)
			return terminal &&
				(err == nil) == (res.Outcome == core.OutcomeSynthesized) &&
				res.Turns == maxTurns &&
				executed.Load() == int64(maxTurns) &&
				m.Calls() == maxTurns+1 &&
				len(res.Trajectory.Turns) == maxTurns+1
		},
		gen.IntRange(1, 25),
	))

	properties.TestingRun(t)
}
