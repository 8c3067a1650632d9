package schedule

import (
	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/clock"
)

// Services wires every schedule component over one pair of repositories.
type Services struct {
	Walker     *Walker
	Engine     *Engine
	Aggregator *Aggregator
	Recorder   *Recorder
	Reporter   *Reporter
}

func NewServices(tasks task.Repository, projects project.Repository, clk clock.Clock) *Services {
	walker := NewWalker(tasks)
	engine := NewEngine(walker, clk)
	return &Services{
		Walker:     walker,
		Engine:     engine,
		Aggregator: NewAggregator(tasks, projects, walker, engine, clk),
		Recorder:   NewRecorder(tasks, clk),
		Reporter:   NewReporter(tasks, engine),
	}
}
