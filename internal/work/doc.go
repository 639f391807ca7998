// Package work — фасад для внешних вызывающих (CLI, API, worker, scheduler).
//
// Work владеет Planner, планом и скомпилированной моделью:
//
//	w, _ := work.New(work.WithServices(map[string]any{"http": services.NewHTTP(nil)}))
//	_ = w.SetPlan("fetch", desc)
//	run, err := w.Run(ctx)
//
// Run оборачивает выполнение в запись domain.Run со статусом,
// результатом и снимком контекста, пишет логи и метрики.
package work
