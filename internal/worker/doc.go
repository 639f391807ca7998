// Package worker выполняет планы по запросам из очереди.
//
// # Обзор
//
// Worker — stateless компонент системы Treeflow. Он отвечает за:
//
//   - Получение запросов run из очереди runs.requested
//   - Загрузку плана из каталога PLANS_DIR (planner.Catalog)
//   - Выполнение дерева узлов через work.Work со встроенными сервисами
//   - Запись run в хранилище и публикацию итога в runs.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди runs.requested.
//
// # Использование
//
//	w := worker.New(worker.Config{
//	    Catalog:   planner.NewCatalog(planner.PlansDir()),
//	    Store:     runRepo,
//	    Publisher: publisher,
//	    Conn:      mqConn,
//	    Services:  services.Builtin(services.Config{Cache: cacheRepo, Publisher: publisher}),
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка запроса
//
//  1. Разбор RunRequestedPayload
//  2. Загрузка и проверка плана по имени
//  3. Создание записи run (ID и ключ идемпотентности из запроса)
//  4. Выполнение с RunTimeout
//  5. Публикация RunCompleted
//
// # Ошибки
//
// Некорректный запрос, неизвестный или невалидный план — постоянные
// ошибки: сообщение сразу уходит в DLQ. Повторная доставка уже
// выполненного run подтверждается без выполнения. Ошибка самого плана
// не является ошибкой обработки: run сохраняется со статусом FAILED.
//
// Состояние дерева узлов не сохраняется: run, прерванный остановкой
// воркера, завершается со статусом CANCELLED и не возобновляется.
package worker
