// Package cli реализует инструмент командной строки Treeflow.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - Локально: run и validate читают файл плана и выполняют его
//     в процессе со встроенными сервисами (http, delay, print, transform, cache).
//   - Через HTTP API: submit, runs, plan, schedule list.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Treeflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок (*APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Plan: "sync-users"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: treeflow runs list --json | jq .
//
// ## Commands
//
//   - run FILE: локальное выполнение (--input KEY=VALUE, --inputs FILE, --trace, --timeout)
//   - validate FILE...: проверка планов
//   - submit PLAN: запуск плана из каталога сервера (--async — через очередь)
//   - runs: list, show
//   - plan: list
//   - schedule: list, next
//
// Группы создаются фабричными функциями (NewRunsCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
