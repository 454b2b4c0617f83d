// Package analyzer 实现整次分析运行的编排
//
// 声明索引构建完毕后，函数体分析是彼此独立的纯阶段，
// 由固定大小的工作池并行执行；全部函数完成构成分析屏障，
// 之后数据流图冻结，串行运行两个图查询。
package analyzer

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tangzhangming/solastan/internal/ast"
	"github.com/tangzhangming/solastan/internal/codebase"
	"github.com/tangzhangming/solastan/internal/dataflow"
	"github.com/tangzhangming/solastan/internal/report"
	"github.com/tangzhangming/solastan/internal/walker"
)

// Options 运行选项
type Options struct {
	Workers      int         // 工作协程数（0 表示 GOMAXPROCS）
	LoopCap      int         // 循环迭代上限
	UnusedDepth  int         // 未使用代码查询深度
	TaintEnabled bool        // 是否运行污点查询
	Logger       *zap.Logger // 日志（nil 则丢弃）
}

// Result 整次运行的结果
type Result struct {
	Issues []report.Issue
	Stats  report.Stats
}

// Analyzer 分析编排器
type Analyzer struct {
	cb     *codebase.Codebase
	opts   Options
	logger *zap.Logger
}

// New 创建编排器
func New(cb *codebase.Codebase, opts Options) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Analyzer{cb: cb, opts: opts, logger: opts.Logger}
}

// Run 分析全部函数并运行图查询
//
// 单个函数的 panic 被捕获转为错误，不影响其余函数；
// 返回的 error 是所有失败函数的聚合。
func (a *Analyzer) Run(fns []*ast.FunctionDecl) (*Result, error) {
	graph := dataflow.NewGraph()

	var mu sync.Mutex
	var issues []report.Issue
	var errs error
	capHits := 0

	jobs := make(chan *ast.FunctionDecl)
	var wg sync.WaitGroup
	for i := 0; i < a.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := walker.New(a.cb, graph, walker.Options{
				LoopCap: a.opts.LoopCap,
				Logger:  a.logger,
			})
			for fn := range jobs {
				result, err := a.analyzeOne(w, fn)
				mu.Lock()
				if err != nil {
					errs = multierr.Append(errs, err)
				} else {
					issues = append(issues, result.Issues...)
					capHits += result.CapHits
				}
				mu.Unlock()
			}
		}()
	}
	for _, fn := range fns {
		jobs <- fn
	}
	close(jobs)
	wg.Wait()

	// 分析屏障：此后图只读
	issues = append(issues, a.runQueries(graph)...)
	sortIssues(issues)

	return &Result{
		Issues: issues,
		Stats: report.Stats{
			Functions:   len(fns),
			Issues:      len(issues),
			FlowNodes:   graph.NodeCount(),
			FlowEdges:   graph.EdgeCount(),
			LoopCapHits: capHits,
		},
	}, errs
}

// analyzeOne 分析单个函数，panic 转为错误
func (a *Analyzer) analyzeOne(w *walker.Walker, fn *ast.FunctionDecl) (result *walker.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("function analysis panicked",
				zap.String("function", fn.Name),
				zap.Any("panic", r))
			err = fmt.Errorf("analysis of %s panicked: %v", fn.Name, r)
		}
	}()
	a.logger.Debug("analyzing function", zap.String("function", fn.Name))
	return w.AnalyzeFunction(fn), nil
}

// runQueries 屏障后的图查询
func (a *Analyzer) runQueries(graph *dataflow.Graph) []report.Issue {
	var issues []report.Issue

	for _, f := range dataflow.FindUnusedDefinitions(graph, a.opts.UnusedDepth) {
		issues = append(issues, report.New(report.A0600, report.LevelWarning, f.Node.Pos,
			"value assigned to %s is never used", f.Node.Path))
	}

	if a.opts.TaintEnabled {
		for _, f := range dataflow.FindTaintFlows(graph) {
			issue := report.New(report.A0601, report.LevelError, f.Sink.Pos,
				"tainted value reaches sink %s (labels: %s)", f.Sink.Path, strings.Join(f.Labels, ", "))
			for _, n := range f.Trace {
				desc := n.Kind.String()
				if n.Path != "" {
					desc += " " + n.Path
				}
				issue.Trace = append(issue.Trace, report.TraceStep{Pos: n.Pos, Desc: desc})
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

// sortIssues 按源位置和问题码排序，保证输出确定性
func sortIssues(issues []report.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Pos.Filename != b.Pos.Filename {
			return a.Pos.Filename < b.Pos.Filename
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column < b.Pos.Column
		}
		return a.Code < b.Code
	})
}
