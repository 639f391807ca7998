// Treeflow CLI — локальное выполнение планов и работа с API.
//
// Использование:
//
//	treeflow [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить файл плана локально
//	validate  Проверить файлы планов
//	submit    Запустить план из каталога сервера
//	runs      Просмотр runs
//	plan      Каталог планов
//	schedule  Расписания и время следующих запусков
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/Treeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
