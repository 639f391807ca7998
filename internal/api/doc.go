// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (каталог планов, хранилище runs, очередь, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, метрики)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - plan_handler.go     — обработчики для /plans
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для просмотра планов, запуска runs
// (синхронно в запросе или через очередь worker) и чтения истории runs.
package api
