// Package planner компилирует декларативные планы в дерево узлов.
//
// План — дерево Descriptor с типами job, queue, template, loop, factory.
// Функции job берутся из fn (Go) или из реестра сервисов по invoke:
//
//	p := planner.New()
//	p.AddService("http", services.NewHTTP(nil))
//	root, err := p.Compile(desc, planner.NewContext(nil))
//
// Файлы планов читаются из YAML или JSON (ParseFile).
package planner
