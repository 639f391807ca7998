// Package scheduler запускает планы по расписаниям.
//
// Расписания читаются из YAML-файла (SCHEDULES_FILE) и держатся в памяти.
// Scheduler периодически проверяет расписания с истекшим NextDueAt
// и публикует запросы на run в очередь runs.requested.
//
// Структура:
//   - scheduler.go — Scheduler (Run, Tick)
//   - schedules.go — загрузка и проверка файла расписаний
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	schedules, err := scheduler.LoadSchedules(scheduler.SchedulesFile())
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: schedules,
//	    Requester: publisher,
//	    Leader:    repo.NewAdvisoryLock(pool, repo.SchedulerLockKey), // опционально
//	    Logger:    logger,
//	})
//	go sched.Run(ctx)
//
// Leader Election:
//
// При нескольких экземплярах тик выполняет только держатель
// pg_try_advisory_lock. Повторные запросы одного слота отсекаются
// ключом идемпотентности run на стороне worker.
package scheduler
