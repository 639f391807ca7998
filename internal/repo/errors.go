package repo

import (
	"errors"

	"github.com/shaiso/Treeflow/internal/domain"
)

// Ошибки хранилищ run и кеша.
var (
	// ErrNotFound — run или запись кеша не найдены.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — run с таким ID или ключом идемпотентности плана уже сохранён.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — обновление меняет статус уже завершённого run.
	ErrInvalidState = errors.New("invalid state")
)

// canUpdate сообщает, можно ли заменить сохранённый статус на next.
// Завершённый run принимает только обновления с тем же статусом.
func canUpdate(stored, next domain.RunStatus) bool {
	return !stored.IsTerminal() || stored == next
}
