package node

import "context"

// Job — листовой узел, вызывающий пользовательскую функцию.
type Job struct {
	Base

	// Fn — вызываемая функция.
	Fn Func

	// ArgsFn строит аргументы из предыдущего результата узла,
	// если Process вызван без аргументов.
	ArgsFn func(prev any) []any
}

// NewJob создаёт job с функцией и шаблоном аргументов.
func NewJob(name string, fn Func, args ...any) *Job {
	j := &Job{Fn: fn}
	j.init(j, "job", name, args)
	return j
}

// Process выполняет job.
//
// Аргументы: явные args, если не пусты; иначе ArgsFn(Result()); иначе Args().
func (j *Job) Process(ctx context.Context, args ...any) (any, error) {
	return j.process(ctx, j, j.execute, args)
}

// Children — у job нет потомков.
func (j *Job) Children() []Node {
	return nil
}

func (j *Job) execute(ctx context.Context, args []any) (any, error) {
	if j.Fn == nil {
		return nil, NewConfigurationError(j.Name(), "fn", "job has no function", ErrNoFunction)
	}

	effective := args
	if len(effective) == 0 {
		if j.ArgsFn != nil {
			effective = j.ArgsFn(j.Result())
		} else {
			effective = j.Args()
		}
	}

	result, err := j.Fn(ctx, effective...)
	if err != nil {
		return nil, &ExecutionError{Node: j.Name(), Err: err}
	}
	return result, nil
}
