// Package node содержит ядро выполнения Treeflow: узлы и их жизненный цикл.
//
// Основные компоненты:
//   - Base: состояние, scope, продолжения onSuccess/onFail, события
//   - Job: вызов пользовательской функции
//   - Queue: дочерние узлы пачками с ограничением параллельности,
//     результаты в порядке добавления
//   - Loop: queue, дочерние узлы которой создаются из итерируемого значения
//   - Placeholder: узел, построенный фабрикой при первом Process
//   - Scope: цепочка переменных с делегированием к родителю
//
// Токены подстановки:
//
//	"•user.name"            → значение по пути (любого типа)
//	"Hello, •{user.name}!"  → строка с подставленным значением
//
// Пути ограничены обращениями к полям и индексам (a.b[0], ['key']).
package node
